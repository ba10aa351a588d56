package domain

import "time"

// FeeSchedule holds the per-property pricing knobs applied on top of
// the nightly rate. Rates are fractions of the base price.
type FeeSchedule struct {
	CleaningFee     float64 `json:"cleaning_fee"`
	SecurityDeposit float64 `json:"security_deposit"`
	ServiceFeeRate  float64 `json:"service_fee_rate"`
	TaxRate         float64 `json:"tax_rate"`
}

// Property is the bookable listing. Listing management lives elsewhere;
// only the fields the booking flow reads are carried here.
type Property struct {
	ID          string
	HostID      string
	Title       string
	NightlyRate float64
	Currency    string
	Fees        FeeSchedule
	MaxGuests   int
	Suspended   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bookable reports whether the property accepts new bookings.
func (p *Property) Bookable() bool {
	return !p.Suspended
}

// FitsOccupancy checks the capacity limit. Zero MaxGuests means no limit.
func (p *Property) FitsOccupancy(o Occupancy) bool {
	return p.MaxGuests <= 0 || o.Guests() <= p.MaxGuests
}
