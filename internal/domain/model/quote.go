package model

// PriceQuote is the pricing engine's output: authoritative price plus a
// breakdown of what was applied. It carries no side effects; promo usage is
// consumed only when the resulting payment succeeds.
type PriceQuote struct {
	TariffID           string
	BasePrice          int64 // minor units
	DiscountPercentage float64
	DiscountAmount     int64
	PromoCode          *string
	PromoCodeID        *string
	PromoEffect        PromoEffect // nil when no code supplied
	PromoDiscount      int64
	FinalPrice         int64
	Currency           string
}
