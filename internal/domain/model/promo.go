package model

import (
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
)

type PromoType string

const (
	PromoTypeBonusDays PromoType = "bonus_days" // extends the granted period
	PromoTypeDiscount  PromoType = "discount"   // reduces the quoted price
	PromoTypeBalance   PromoType = "balance"    // credits the ledger after payment
)

// PromoCode is a redeemable code. UsedCount only moves on successful
// redemption inside a fulfillment transaction, never at quote time.
type PromoCode struct {
	ID                  string
	Code                string
	Type                PromoType
	Value               float64 // meaning depends on Type, see Effect
	BonusDays           int
	MinPurchaseAmount   *int64 // minor units, checked against the running price
	ApplicableTariffIDs []string
	MaxActivations      *int
	UsedCount           int
	IsActive            bool
	ValidUntil          *time.Time
	CreatedAt           time.Time
}

// PromoEffect is the closed set of things a promo code can do. Both the
// pricing engine and the activation path switch over it exhaustively, so a
// new promo kind is a compile-visible change.
type PromoEffect interface{ promoEffect() }

// DiscountEffect reduces the price: Value <= 100 is a percentage off,
// Value > 100 a flat major-unit amount. This split is deliberate policy,
// not an inference.
type DiscountEffect struct{ Value float64 }

// BonusDaysEffect adds days to the granted period; price-neutral.
type BonusDaysEffect struct{ Days int }

// BalanceEffect credits the ledger after the payment succeeds; price-neutral.
type BalanceEffect struct{ Amount int64 } // minor units

func (DiscountEffect) promoEffect()  {}
func (BonusDaysEffect) promoEffect() {}
func (BalanceEffect) promoEffect()   {}

// Effect maps the persisted type tag to its variant.
func (p *PromoCode) Effect() (PromoEffect, error) {
	switch p.Type {
	case PromoTypeDiscount:
		return DiscountEffect{Value: p.Value}, nil
	case PromoTypeBonusDays:
		return BonusDaysEffect{Days: p.BonusDays}, nil
	case PromoTypeBalance:
		return BalanceEffect{Amount: MinorUnits(p.Value)}, nil
	default:
		return nil, domain.ErrPromoInvalid
	}
}

// AppliesTo reports whether the code is restricted to specific tariffs and,
// if so, whether tariffID is among them.
func (p *PromoCode) AppliesTo(tariffID string) bool {
	if len(p.ApplicableTariffIDs) == 0 {
		return true
	}
	for _, id := range p.ApplicableTariffIDs {
		if id == tariffID {
			return true
		}
	}
	return false
}

// Exhausted reports whether the activation limit has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.MaxActivations != nil && p.UsedCount >= *p.MaxActivations
}

// Expired reports whether the code's validity window has passed at t.
func (p *PromoCode) Expired(t time.Time) bool {
	return p.ValidUntil != nil && p.ValidUntil.Before(t)
}
