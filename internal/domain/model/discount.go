package model

import "time"

// UserDiscount is a personal percentage discount. TariffID nil means it
// applies to every tariff; a tariff-specific discount outranks a blanket one.
type UserDiscount struct {
	ID                 string
	UserID             string
	DiscountPercentage float64
	TariffID           *string
	IsActive           bool
	CreatedAt          time.Time
}

// BestDiscount picks the discount to apply for tariffID: the highest
// tariff-specific percentage if any qualifies, otherwise the highest blanket
// percentage. Returns nil when nothing applies.
func BestDiscount(discounts []*UserDiscount, tariffID string) *UserDiscount {
	var specific, general *UserDiscount
	for _, d := range discounts {
		if d == nil || !d.IsActive || d.DiscountPercentage <= 0 {
			continue
		}
		switch {
		case d.TariffID != nil && *d.TariffID == tariffID:
			if specific == nil || d.DiscountPercentage > specific.DiscountPercentage {
				specific = d
			}
		case d.TariffID == nil:
			if general == nil || d.DiscountPercentage > general.DiscountPercentage {
				general = d
			}
		}
	}
	if specific != nil {
		return specific
	}
	return general
}
