// Package worker runs the background sweeps behind the booking engine.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/service"
)

// ExpiryWorker periodically cancels pending bookings whose check-in
// passed without payment, so abandoned holds never block a calendar.
type ExpiryWorker struct {
	bookingService service.BookingService
	interval       time.Duration
	log            *logger.Logger
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool

	totalExpired int64
	lastSweep    time.Time
}

// NewExpiryWorker creates the expiry worker
func NewExpiryWorker(bookingService service.BookingService, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpiryWorker{
		bookingService: bookingService,
		interval:       interval,
		log:            logger.Get(),
		stopCh:         make(chan struct{}),
	}
}

// Start launches the sweep loop
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("starting booking expiry worker")

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the worker and waits for the in-flight sweep to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("booking expiry worker stopped")
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastSweep = time.Now().UTC()
	w.mu.Unlock()

	expired, err := w.bookingService.ExpireStalePending(ctx)
	if err != nil {
		w.log.Error(fmt.Sprintf("expiry sweep failed: %v", err))
		return
	}
	if expired == 0 {
		return
	}

	w.mu.Lock()
	w.totalExpired += int64(expired)
	w.mu.Unlock()

	w.log.Info(fmt.Sprintf("expiry sweep cancelled %d stale bookings", expired))
}

// Stats returns a snapshot of the worker counters
func (w *ExpiryWorker) Stats() (running bool, totalExpired int64, lastSweep time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running, w.totalExpired, w.lastSweep
}
