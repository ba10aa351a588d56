package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/staybook/staybook/internal/domain"
	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/metrics"
	"github.com/staybook/staybook/internal/notify"
	"github.com/staybook/staybook/internal/pricing"
	"github.com/staybook/staybook/internal/repository"
)

// CreateBookingInput carries the validated request fields for a new booking
type CreateBookingInput struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Occupancy  domain.Occupancy
}

// BookingService defines the booking engine operations. Caller identity
// comes from the transport layer; authorization happens here.
type BookingService interface {
	// Create books a property for the guest if the window is free
	Create(ctx context.Context, guestID string, in CreateBookingInput) (*domain.Booking, error)

	// GetByID returns the booking to its guest or host
	GetByID(ctx context.Context, id, callerID string) (*domain.Booking, error)

	// ListForGuest returns the guest's bookings
	ListForGuest(ctx context.Context, guestID string) ([]*domain.Booking, error)

	// ListForHost returns bookings on the host's properties
	ListForHost(ctx context.Context, hostID string) ([]*domain.Booking, error)

	// Confirm is the host accepting a pending booking
	Confirm(ctx context.Context, id, callerID string) (*domain.Booking, error)

	// Cancel cancels the booking on behalf of its guest or host,
	// recording the refund intent only
	Cancel(ctx context.Context, id, callerID, reason string) (*domain.Booking, error)

	// Complete closes out a stay whose check-out has passed (host only)
	Complete(ctx context.Context, id, callerID string) (*domain.Booking, error)

	// IsAvailable reports whether the window is free of blocking bookings
	IsAvailable(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error)

	// PaidDates returns the property's blocked UTC days from paid bookings
	PaidDates(ctx context.Context, propertyID string) ([]string, error)

	// MarkPaid applies a settled payment to the booking. Used by the
	// payment reconciliation path; returns whether this call changed
	// anything.
	MarkPaid(ctx context.Context, bookingID, transactionID string, paidAt time.Time) (bool, error)

	// MarkRefunded finalizes the booking after its payment fully refunded
	MarkRefunded(ctx context.Context, bookingID string) error

	// ExpireStalePending cancels pending unpaid bookings whose check-in
	// passed; returns how many were expired
	ExpireStalePending(ctx context.Context) (int, error)
}

// PaidDatesCache caches the blocked-dates view with a short TTL.
type PaidDatesCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

const paidDatesKeyPrefix = "paid_dates:"

type bookingService struct {
	bookings   repository.BookingRepository
	properties repository.PropertyRepository
	cache      PaidDatesCache
	cacheTTL   time.Duration
	publisher  notify.Publisher
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewBookingService creates the booking service. cache may be nil to
// disable paid-dates caching; publisher may be nil to disable events.
func NewBookingService(
	bookings repository.BookingRepository,
	properties repository.PropertyRepository,
	cache PaidDatesCache,
	cacheTTL time.Duration,
	publisher notify.Publisher,
	m *metrics.Metrics,
) BookingService {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &bookingService{
		bookings:   bookings,
		properties: properties,
		cache:      cache,
		cacheTTL:   cacheTTL,
		publisher:  publisher,
		metrics:    m,
		log:        logger.Get(),
	}
}

func (s *bookingService) Create(ctx context.Context, guestID string, in CreateBookingInput) (*domain.Booking, error) {
	now := time.Now().UTC()
	if err := domain.ValidateWindow(in.CheckIn, in.CheckOut, now); err != nil {
		return nil, err
	}
	if err := in.Occupancy.Validate(); err != nil {
		return nil, err
	}

	property, err := s.properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.Bookable() {
		return nil, domain.ErrPropertySuspended
	}
	if property.HostID == guestID {
		return nil, domain.ValidationError("OWN_PROPERTY", "hosts cannot book their own property")
	}
	if !property.FitsOccupancy(in.Occupancy) {
		return nil, domain.ValidationError("OCCUPANCY_EXCEEDS_CAPACITY", "guest count exceeds property capacity")
	}

	breakdown, err := pricing.QuoteProperty(property, domain.Nights(in.CheckIn, in.CheckOut))
	if err != nil {
		return nil, err
	}

	booking := domain.NewBooking(in.PropertyID, guestID, property.HostID, in.CheckIn, in.CheckOut, in.Occupancy, breakdown)

	// The overlap check and insert run in one transaction; a losing
	// concurrent request comes back with ErrDatesUnavailable.
	if err := s.bookings.CreateIfAvailable(ctx, booking); err != nil {
		return nil, err
	}

	s.count(func(m *metrics.Metrics) { m.BookingsCreated.Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventBookingCreated,
		BookingID:  booking.ID,
		PropertyID: booking.PropertyID,
		GuestID:    booking.GuestID,
		HostID:     booking.HostID,
		Amount:     booking.Pricing.Total,
		OccurredAt: now,
	})

	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id, callerID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.GuestID != callerID && b.HostID != callerID {
		return nil, domain.AuthorizationError("only the booking's guest or host may view it")
	}
	return b, nil
}

func (s *bookingService) ListForGuest(ctx context.Context, guestID string) ([]*domain.Booking, error) {
	return s.bookings.ListByGuest(ctx, guestID)
}

func (s *bookingService) ListForHost(ctx context.Context, hostID string) ([]*domain.Booking, error) {
	return s.bookings.ListByHost(ctx, hostID)
}

func (s *bookingService) Confirm(ctx context.Context, id, callerID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.HostID != callerID {
		return nil, domain.AuthorizationError("only the host may confirm a booking")
	}
	if err := b.Confirm(); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.count(func(m *metrics.Metrics) { m.BookingsConfirmed.Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventBookingConfirmed,
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		OccurredAt: time.Now().UTC(),
	})

	return b, nil
}

func (s *bookingService) Cancel(ctx context.Context, id, callerID, reason string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var actor domain.CancelActor
	switch callerID {
	case b.GuestID:
		actor = domain.CancelActorGuest
	case b.HostID:
		actor = domain.CancelActorHost
	default:
		return nil, domain.AuthorizationError("only the booking's guest or host may cancel it")
	}

	return s.cancel(ctx, b, actor, reason)
}

func (s *bookingService) cancel(ctx context.Context, b *domain.Booking, actor domain.CancelActor, reason string) (*domain.Booking, error) {
	c := &domain.Cancellation{
		CancelledBy:  actor,
		CancelledAt:  time.Now().UTC(),
		Reason:       reason,
		RefundAmount: b.Pricing.Total,
		RefundStatus: domain.RefundStatePending,
	}

	changed, err := s.bookings.Cancel(ctx, b.ID, c)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.ErrBookingNotCancelable
	}

	s.invalidatePaidDates(ctx, b.PropertyID)
	s.count(func(m *metrics.Metrics) { m.BookingsCancelled.WithLabelValues(string(actor)).Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventBookingCancelled,
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		Amount:     c.RefundAmount,
		OccurredAt: c.CancelledAt,
	})

	return s.bookings.GetByID(ctx, b.ID)
}

func (s *bookingService) Complete(ctx context.Context, id, callerID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.HostID != callerID {
		return nil, domain.AuthorizationError("only the host may complete a booking")
	}
	if err := b.Complete(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.count(func(m *metrics.Metrics) { m.BookingsCompleted.Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventBookingCompleted,
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		OccurredAt: time.Now().UTC(),
	})

	return b, nil
}

func (s *bookingService) IsAvailable(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error) {
	if !checkOut.After(checkIn) {
		return false, domain.ValidationError("INVALID_DATE_RANGE", "check-out must be after check-in")
	}
	blocked, err := s.bookings.HasBlockingOverlap(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

func (s *bookingService) PaidDates(ctx context.Context, propertyID string) ([]string, error) {
	key := paidDatesKeyPrefix + propertyID
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var dates []string
			if err := json.Unmarshal([]byte(cached), &dates); err == nil {
				return dates, nil
			}
		}
	}

	paid, err := s.bookings.ListPaidByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	dates := []string{}
	for _, b := range paid {
		for _, d := range b.PaidDays() {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(dates); err == nil {
			if err := s.cache.Set(ctx, key, string(encoded), s.cacheTTL); err != nil {
				s.log.Warn("failed to cache paid dates", zap.String("property_id", propertyID), zap.Error(err))
			}
		}
	}

	return dates, nil
}

func (s *bookingService) MarkPaid(ctx context.Context, bookingID, transactionID string, paidAt time.Time) (bool, error) {
	changed, err := s.bookings.MarkPaid(ctx, bookingID, transactionID, paidAt)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return true, err
	}

	s.invalidatePaidDates(ctx, b.PropertyID)
	s.count(func(m *metrics.Metrics) { m.BookingsConfirmed.Inc() })
	s.publish(ctx, notify.Event{
		Type:       notify.EventBookingConfirmed,
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		Amount:     b.Pricing.Total,
		OccurredAt: paidAt.UTC(),
	})

	return true, nil
}

func (s *bookingService) MarkRefunded(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	b.MarkRefunded()
	if err := s.bookings.Update(ctx, b); err != nil {
		return err
	}
	s.invalidatePaidDates(ctx, b.PropertyID)
	return nil
}

// ExpireStalePending sweeps pending bookings whose check-in passed
// without payment and cancels them system-side.
func (s *bookingService) ExpireStalePending(ctx context.Context) (int, error) {
	stale, err := s.bookings.ListStalePending(ctx, time.Now().UTC(), 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range stale {
		if _, err := s.cancel(ctx, b, domain.CancelActorSystem, "check-in passed without payment"); err != nil {
			s.log.Warn("failed to expire booking", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		expired++
		s.count(func(m *metrics.Metrics) { m.BookingsExpired.Inc() })
	}
	return expired, nil
}

func (s *bookingService) invalidatePaidDates(ctx context.Context, propertyID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, paidDatesKeyPrefix+propertyID); err != nil {
		s.log.Warn("failed to invalidate paid dates cache", zap.String("property_id", propertyID), zap.Error(err))
	}
}

func (s *bookingService) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *bookingService) publish(ctx context.Context, event notify.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn(fmt.Sprintf("failed to publish %s event", event.Type), zap.String("booking_id", event.BookingID), zap.Error(err))
	}
}
