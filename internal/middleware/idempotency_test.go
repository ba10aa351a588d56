package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory RedisClient. TTLs are ignored; expiry is not
// part of what these tests exercise.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	down bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStringResult("", context.DeadlineExceeded)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStatusResult("", context.DeadlineExceeded)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewBoolResult(false, context.DeadlineExceeded)
	}
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newIdempotencyRouter(store *fakeRedis) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)

	calls := 0
	router := gin.New()
	router.POST("/orders", Idempotency(DefaultIdempotencyConfig(store)), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"order": calls})
	})
	router.GET("/orders", Idempotency(DefaultIdempotencyConfig(store)), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"order": calls})
	})
	return router, &calls
}

func postOrder(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_MissingKey(t *testing.T) {
	router, calls := newIdempotencyRouter(newFakeRedis())

	w := postOrder(router, "", `{"a":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, *calls)
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	router, calls := newIdempotencyRouter(newFakeRedis())

	first := postOrder(router, "key-1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, *calls)

	second := postOrder(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *calls, "handler must not run again on replay")
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	router, calls := newIdempotencyRouter(newFakeRedis())

	first := postOrder(router, "key-1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	w := postOrder(router, "key-1", `{"a":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_InProgressConflicts(t *testing.T) {
	store := newFakeRedis()
	router, calls := newIdempotencyRouter(store)

	// Simulate an in-flight request by seeding a processing record with
	// the hash the middleware would compute for the same request.
	h := sha256.New()
	h.Write([]byte("POST"))
	h.Write([]byte("/orders"))
	record := &IdempotencyRecord{
		Key:         "key-1",
		Status:      StatusProcessing,
		RequestHash: hex.EncodeToString(h.Sum(nil)),
		CreatedAt:   time.Now(),
	}
	require.True(t, trySetIdempotencyRecord(context.Background(), store, IdempotencyKeyPrefix+"key-1", record, time.Minute))

	w := postOrder(router, "key-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, *calls)
}

func TestIdempotency_GetBypasses(t *testing.T) {
	router, calls := newIdempotencyRouter(newFakeRedis())

	req := httptest.NewRequest("GET", "/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *calls)
}

func TestIdempotency_FailsOpenWhenRedisDown(t *testing.T) {
	store := newFakeRedis()
	store.down = true
	router, calls := newIdempotencyRouter(store)

	first := postOrder(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := postOrder(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, *calls, "without Redis every request runs")
}
