package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staybook/staybook/internal/domain"
	"github.com/staybook/staybook/internal/repository"
)

func day(offset int) time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, offset)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
	dels int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.dels++
	return nil
}

type bookingFixture struct {
	svc        BookingService
	bookings   *repository.MemoryBookingRepository
	properties *repository.MemoryPropertyRepository
	cache      *fakeCache
	property   *domain.Property
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	properties := repository.NewMemoryPropertyRepository()
	property := &domain.Property{
		ID:          "prop-1",
		HostID:      "host-1",
		Title:       "Harbor loft",
		NightlyRate: 100,
		Currency:    "usd",
		Fees:        domain.FeeSchedule{CleaningFee: 50, ServiceFeeRate: 0.1, TaxRate: 0.05},
		MaxGuests:   4,
	}
	require.NoError(t, properties.Create(context.Background(), property))

	bookings := repository.NewMemoryBookingRepository(properties)
	cache := newFakeCache()

	return &bookingFixture{
		svc:        NewBookingService(bookings, properties, cache, time.Minute, nil, nil),
		bookings:   bookings,
		properties: properties,
		cache:      cache,
		property:   property,
	}
}

func (f *bookingFixture) create(t *testing.T, guestID string, checkIn, checkOut time.Time) *domain.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), guestID, CreateBookingInput{
		PropertyID: f.property.ID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Occupancy:  domain.Occupancy{Adults: 2},
	})
	require.NoError(t, err)
	return b
}

func TestBookingService_Create(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.create(t, "guest-1", day(7), day(10))

	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, domain.PaymentStatePending, b.PaymentStatus)
	assert.Equal(t, "host-1", b.HostID)
	assert.Equal(t, 3, b.Pricing.Nights)
	assert.Equal(t, 300.0, b.Pricing.BasePrice)
	assert.Equal(t, 395.0, b.Pricing.Total)

	stored, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
}

func TestBookingService_Create_Rejections(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		guestID string
		in      CreateBookingInput
		setup   func()
		errKind domain.ErrorKind
	}{
		{
			name:    "host books own property",
			guestID: "host-1",
			in: CreateBookingInput{
				PropertyID: "prop-1", CheckIn: day(7), CheckOut: day(9),
				Occupancy: domain.Occupancy{Adults: 1},
			},
			errKind: domain.KindValidation,
		},
		{
			name:    "occupancy exceeds capacity",
			guestID: "guest-1",
			in: CreateBookingInput{
				PropertyID: "prop-1", CheckIn: day(7), CheckOut: day(9),
				Occupancy: domain.Occupancy{Adults: 3, Children: 2},
			},
			errKind: domain.KindValidation,
		},
		{
			name:    "check-in in the past",
			guestID: "guest-1",
			in: CreateBookingInput{
				PropertyID: "prop-1", CheckIn: day(-2), CheckOut: day(1),
				Occupancy: domain.Occupancy{Adults: 1},
			},
			errKind: domain.KindValidation,
		},
		{
			name:    "unknown property",
			guestID: "guest-1",
			in: CreateBookingInput{
				PropertyID: "prop-missing", CheckIn: day(7), CheckOut: day(9),
				Occupancy: domain.Occupancy{Adults: 1},
			},
			errKind: domain.KindNotFound,
		},
		{
			name:    "suspended property",
			guestID: "guest-1",
			in: CreateBookingInput{
				PropertyID: "prop-1", CheckIn: day(7), CheckOut: day(9),
				Occupancy: domain.Occupancy{Adults: 1},
			},
			setup: func() {
				p := *f.property
				p.Suspended = true
				require.NoError(t, f.properties.Create(ctx, &p))
			},
			errKind: domain.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, err := f.svc.Create(ctx, tt.guestID, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.errKind, domain.KindOf(err))
		})
	}
}

func TestBookingService_DoubleBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first := f.create(t, "guest-a", day(7), day(10))

	// A pending booking does not hold the dates yet.
	_, err := f.svc.Create(ctx, "guest-b", CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(8), CheckOut: day(11),
		Occupancy: domain.Occupancy{Adults: 1},
	})
	require.NoError(t, err)

	changed, err := f.svc.MarkPaid(ctx, first.ID, "txn_1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)

	// Once paid and confirmed, overlapping windows lose.
	_, err = f.svc.Create(ctx, "guest-c", CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(9), CheckOut: day(12),
		Occupancy: domain.Occupancy{Adults: 1},
	})
	assert.ErrorIs(t, err, domain.ErrDatesUnavailable)

	// A back-to-back stay sharing the boundary day is fine.
	_, err = f.svc.Create(ctx, "guest-c", CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(10), CheckOut: day(12),
		Occupancy: domain.Occupancy{Adults: 1},
	})
	assert.NoError(t, err)
}

func TestBookingService_ConfirmAndPay_BothOrders(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("host confirms then payment settles", func(t *testing.T) {
		b := f.create(t, "guest-1", day(7), day(9))

		_, err := f.svc.Confirm(ctx, b.ID, "host-1")
		require.NoError(t, err)

		changed, err := f.svc.MarkPaid(ctx, b.ID, "txn_1", time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := f.svc.GetByID(ctx, b.ID, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
		assert.Equal(t, domain.PaymentStatePaid, got.PaymentStatus)
	})

	t.Run("payment settles before host confirms", func(t *testing.T) {
		b := f.create(t, "guest-1", day(14), day(16))

		changed, err := f.svc.MarkPaid(ctx, b.ID, "txn_2", time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := f.svc.GetByID(ctx, b.ID, "guest-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
		assert.Equal(t, domain.PaymentStatePaid, got.PaymentStatus)
	})

	t.Run("replayed settlement is a no-op", func(t *testing.T) {
		b := f.create(t, "guest-1", day(21), day(23))

		changed, err := f.svc.MarkPaid(ctx, b.ID, "txn_3", time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = f.svc.MarkPaid(ctx, b.ID, "txn_3", time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestBookingService_Confirm_Authorization(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.create(t, "guest-1", day(7), day(9))

	_, err := f.svc.Confirm(ctx, b.ID, "guest-1")
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	_, err = f.svc.Confirm(ctx, b.ID, "host-1")
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, b.ID, "host-1")
	assert.ErrorIs(t, err, domain.ErrBookingNotPending)
}

func TestBookingService_Cancel(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.create(t, "guest-1", day(7), day(9))
	changed, err := f.svc.MarkPaid(ctx, b.ID, "txn_1", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, changed)

	_, err = f.svc.Cancel(ctx, b.ID, "stranger", "")
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	got, err := f.svc.Cancel(ctx, b.ID, "guest-1", "change of plans")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, domain.CancelActorGuest, got.Cancellation.CancelledBy)
	assert.Equal(t, got.Pricing.Total, got.Cancellation.RefundAmount)
	assert.Equal(t, domain.RefundStatePending, got.Cancellation.RefundStatus)

	// The money has not moved yet; only the intent is recorded.
	assert.Equal(t, domain.PaymentStatePaid, got.PaymentStatus)

	_, err = f.svc.Cancel(ctx, b.ID, "guest-1", "again")
	assert.ErrorIs(t, err, domain.ErrBookingNotCancelable)

	// The freed window is bookable again.
	_, err = f.svc.Create(ctx, "guest-2", CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(7), CheckOut: day(9),
		Occupancy: domain.Occupancy{Adults: 1},
	})
	assert.NoError(t, err)
}

func TestBookingService_PaidDates(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.create(t, "guest-1", day(7), day(10))
	_, err := f.svc.MarkPaid(ctx, b.ID, "txn_1", time.Now().UTC())
	require.NoError(t, err)

	want := []string{
		day(7).Format("2006-01-02"),
		day(8).Format("2006-01-02"),
		day(9).Format("2006-01-02"),
	}

	dates, err := f.svc.PaidDates(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, want, dates)
	assert.Equal(t, 1, f.cache.sets)

	// Second read comes from the cache.
	dates, err = f.svc.PaidDates(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, want, dates)
	assert.Equal(t, 1, f.cache.sets)

	// Cancellation invalidates the cached view.
	_, err = f.svc.Cancel(ctx, b.ID, "guest-1", "")
	require.NoError(t, err)

	dates, err = f.svc.PaidDates(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestBookingService_IsAvailable(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b := f.create(t, "guest-1", day(7), day(10))
	_, err := f.svc.MarkPaid(ctx, b.ID, "txn_1", time.Now().UTC())
	require.NoError(t, err)

	ok, err := f.svc.IsAvailable(ctx, f.property.ID, day(8), day(9))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.IsAvailable(ctx, f.property.ID, day(10), day(12))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.IsAvailable(ctx, f.property.ID, day(9), day(9))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestBookingService_Complete(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	// A finished stay has to be seeded directly; Create rejects past windows.
	b := domain.NewBooking(f.property.ID, "guest-1", "host-1", day(-5), day(-2), domain.Occupancy{Adults: 1}, domain.PriceBreakdown{Total: 100})
	b.Status = domain.BookingStatusConfirmed
	require.NoError(t, f.bookings.CreateIfAvailable(ctx, b))

	_, err := f.svc.Complete(ctx, b.ID, "guest-1")
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	got, err := f.svc.Complete(ctx, b.ID, "host-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, got.Status)

	_, err = f.svc.Complete(ctx, b.ID, "host-1")
	assert.ErrorIs(t, err, domain.ErrBookingNotActive)
}

func TestBookingService_ExpireStalePending(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	stale := domain.NewBooking(f.property.ID, "guest-1", "host-1", day(-3), day(-1), domain.Occupancy{Adults: 1}, domain.PriceBreakdown{Total: 100})
	require.NoError(t, f.bookings.CreateIfAvailable(ctx, stale))

	fresh := f.create(t, "guest-2", day(7), day(9))

	expired, err := f.svc.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.bookings.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, domain.CancelActorSystem, got.Cancellation.CancelledBy)

	got, err = f.bookings.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, got.Status)
}
