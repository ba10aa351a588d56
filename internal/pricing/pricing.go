// Package pricing computes the itemized cost of a stay. All functions
// are pure; amounts are in the property's currency major units, rounded
// to cents.
package pricing

import (
	"math"

	"github.com/staybook/staybook/internal/domain"
)

// Quote prices a stay of the given length. The service fee and taxes
// are computed from the base price (nights x rate) and rounded to two
// decimals; the total is the exact sum of the rounded components.
func Quote(nightlyRate float64, nights int, fees domain.FeeSchedule) (domain.PriceBreakdown, error) {
	if nightlyRate <= 0 {
		return domain.PriceBreakdown{}, domain.ValidationError("INVALID_RATE", "nightly rate must be positive")
	}
	if nights < domain.MinNights || nights > domain.MaxNights {
		return domain.PriceBreakdown{}, domain.ValidationError("INVALID_NIGHTS", "nights must be between 1 and 30")
	}
	if fees.CleaningFee < 0 || fees.SecurityDeposit < 0 || fees.ServiceFeeRate < 0 || fees.TaxRate < 0 {
		return domain.PriceBreakdown{}, domain.ValidationError("INVALID_FEES", "fees cannot be negative")
	}

	base := round2(nightlyRate * float64(nights))
	serviceFee := round2(base * fees.ServiceFeeRate)
	taxes := round2(base * fees.TaxRate)
	cleaning := round2(fees.CleaningFee)
	deposit := round2(fees.SecurityDeposit)

	return domain.PriceBreakdown{
		NightlyRate:     nightlyRate,
		Nights:          nights,
		BasePrice:       base,
		CleaningFee:     cleaning,
		ServiceFee:      serviceFee,
		SecurityDeposit: deposit,
		Taxes:           taxes,
		Total:           round2(base + cleaning + serviceFee + deposit + taxes),
	}, nil
}

// QuoteProperty prices a stay of the given length against a property's
// rate and fee schedule.
func QuoteProperty(p *domain.Property, nights int) (domain.PriceBreakdown, error) {
	return Quote(p.NightlyRate, nights, p.Fees)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
