// internal/promo/benefit.go
package promo

import (
	"fmt"

	"github.com/tmango-lab/fieldbooking/internal/store"
)

// Benefit is the closed set of campaign discount kinds. Campaign rows store
// a type tag plus one value; anything else is rejected at parse time rather
// than interpreted loosely.
type Benefit interface {
	// Apply returns the discounted total, floored at zero.
	Apply(total int64) int64
}

// FixedDiscount subtracts a flat amount from the booking total.
type FixedDiscount struct {
	Amount int64
}

func (d FixedDiscount) Apply(total int64) int64 {
	discounted := total - d.Amount
	if discounted < 0 {
		return 0
	}
	return discounted
}

// PercentDiscount subtracts a percentage of the booking total. Fractional
// discount amounts are truncated toward zero.
type PercentDiscount struct {
	Percent int64
}

func (d PercentDiscount) Apply(total int64) int64 {
	if d.Percent >= 100 {
		return 0
	}
	discounted := total - total*d.Percent/100
	if discounted < 0 {
		return 0
	}
	return discounted
}

// BenefitFromCampaign resolves a campaign's stored benefit into one of the
// known variants.
func BenefitFromCampaign(campaign store.Campaign) (Benefit, error) {
	switch campaign.BenefitType {
	case store.BenefitTypeFixed:
		if campaign.BenefitValue < 0 {
			return nil, fmt.Errorf("campaign %s: negative fixed discount %d", campaign.ID, campaign.BenefitValue)
		}
		return FixedDiscount{Amount: campaign.BenefitValue}, nil
	case store.BenefitTypePercent:
		if campaign.BenefitValue < 0 || campaign.BenefitValue > 100 {
			return nil, fmt.Errorf("campaign %s: percent discount %d out of range", campaign.ID, campaign.BenefitValue)
		}
		return PercentDiscount{Percent: campaign.BenefitValue}, nil
	default:
		return nil, fmt.Errorf("campaign %s: unknown benefit type %q", campaign.ID, campaign.BenefitType)
	}
}
