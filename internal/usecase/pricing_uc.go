package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

// PricingUseCase computes the authoritative price for a tariff purchase.
// Quote is a pure read: promo usage is not consumed here, so abandoned
// checkouts never burn codes.
type PricingUseCase interface {
	Quote(ctx context.Context, userID, tariffID, promoCode string) (*model.PriceQuote, error)

	// ValidatePromo runs the full promo validation against a tariff without
	// producing a quote; used by checkout UIs for early feedback.
	ValidatePromo(ctx context.Context, userID, tariffID, code string) (*model.PromoCode, error)
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	tariffs   repository.TariffRepository
	promos    repository.PromoCodeRepository
	discounts repository.DiscountRepository
	log       *zerolog.Logger
}

func NewPricingUseCase(
	tariffs repository.TariffRepository,
	promos repository.PromoCodeRepository,
	discounts repository.DiscountRepository,
	logger *zerolog.Logger,
) *pricingUC {
	l := logger.With().Str("component", "PricingUC").Logger()
	return &pricingUC{tariffs: tariffs, promos: promos, discounts: discounts, log: &l}
}

// Quote applies, in order: base tariff price, the user's best personal
// discount, then the promo code. The result is clamped to zero and every
// percentage application is rounded half-up to minor units.
func (u *pricingUC) Quote(ctx context.Context, userID, tariffID, promoCode string) (*model.PriceQuote, error) {
	tariff, err := u.tariffs.FindByID(ctx, repository.NoTX, tariffID)
	if err != nil {
		return nil, domain.ErrTariffNotFound
	}
	if !tariff.IsActive {
		return nil, domain.ErrTariffNotFound
	}

	q := &model.PriceQuote{
		TariffID:  tariff.ID,
		BasePrice: tariff.Price,
		Currency:  tariff.Currency,
	}
	price := tariff.Price

	discounts, err := u.discounts.ListActiveForUser(ctx, repository.NoTX, userID, tariffID)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	if best := model.BestDiscount(discounts, tariffID); best != nil {
		q.DiscountPercentage = best.DiscountPercentage
		q.DiscountAmount = model.RoundHalfUp(float64(tariff.Price) * best.DiscountPercentage / 100)
		price -= q.DiscountAmount
	}

	if code := strings.TrimSpace(promoCode); code != "" {
		promo, err := u.validatePromo(ctx, userID, tariffID, code, price)
		if err != nil {
			return nil, err
		}
		effect, err := promo.Effect()
		if err != nil {
			return nil, err
		}
		q.PromoCode = &promo.Code
		q.PromoCodeID = &promo.ID
		q.PromoEffect = effect

		switch e := effect.(type) {
		case model.DiscountEffect:
			if e.Value <= 100 {
				q.PromoDiscount = model.RoundHalfUp(float64(price) * e.Value / 100)
			} else {
				flat := model.MinorUnits(e.Value)
				if flat > price {
					flat = price
				}
				q.PromoDiscount = flat
			}
			price -= q.PromoDiscount
		case model.BonusDaysEffect, model.BalanceEffect:
			// Price-neutral; recorded on the quote for post-payment fulfillment.
		}
	}

	if price < 0 {
		price = 0
	}
	q.FinalPrice = price

	u.log.Debug().
		Str("user_id", userID).
		Str("tariff_id", tariffID).
		Int64("base", q.BasePrice).
		Int64("final", q.FinalPrice).
		Msg("price quoted")
	return q, nil
}

func (u *pricingUC) ValidatePromo(ctx context.Context, userID, tariffID, code string) (*model.PromoCode, error) {
	tariff, err := u.tariffs.FindByID(ctx, repository.NoTX, tariffID)
	if err != nil || !tariff.IsActive {
		return nil, domain.ErrTariffNotFound
	}
	return u.validatePromo(ctx, userID, tariffID, strings.TrimSpace(code), tariff.Price)
}

// validatePromo checks existence, active flag, expiry, remaining activations,
// per-user reuse, tariff applicability and the minimum purchase amount
// against the running price. Each failure maps to a specific domain error.
func (u *pricingUC) validatePromo(ctx context.Context, userID, tariffID, code string, currentPrice int64) (*model.PromoCode, error) {
	promo, err := u.promos.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, domain.ErrPromoInvalid
	}
	if !promo.IsActive {
		return nil, domain.ErrPromoInvalid
	}
	if promo.Exhausted() {
		return nil, domain.ErrPromoExhausted
	}
	if promo.Expired(time.Now()) {
		return nil, domain.ErrPromoExpired
	}
	used, err := u.promos.HasActivation(ctx, repository.NoTX, promo.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.ErrPromoAlreadyUsed
	}
	if !promo.AppliesTo(tariffID) {
		return nil, domain.ErrPromoNotApplicable
	}
	if promo.MinPurchaseAmount != nil && currentPrice < *promo.MinPurchaseAmount {
		return nil, domain.ErrPromoNotApplicable
	}
	return promo, nil
}
