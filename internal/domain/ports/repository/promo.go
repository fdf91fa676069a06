package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// PromoCodeRepository is the port for promo codes and their activations.
type PromoCodeRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PromoCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromoCode, error)

	// HasActivation reports whether the user already redeemed this code.
	HasActivation(ctx context.Context, tx Tx, promoID, userID string) (bool, error)

	// Redeem atomically increments used_count while guarding the activation
	// limit in the UPDATE predicate, and records the per-user activation.
	// Returns domain.ErrPromoExhausted when the limit was hit first and
	// domain.ErrPromoAlreadyUsed on a duplicate per-user activation.
	Redeem(ctx context.Context, tx Tx, promoID, userID string, paymentID *string) error
}
