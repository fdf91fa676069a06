package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// DiscountRepository is the port for personal discounts.
type DiscountRepository interface {
	Save(ctx context.Context, tx Tx, d *model.UserDiscount) error

	// ListActiveForUser returns active discounts applicable to tariffID:
	// tariff-specific rows plus blanket rows.
	ListActiveForUser(ctx context.Context, tx Tx, userID, tariffID string) ([]*model.UserDiscount, error)
}
