package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// PaymentMethodRepository is the port for saved off-session instruments.
type PaymentMethodRepository interface {
	Save(ctx context.Context, tx Tx, m *model.PaymentMethod) error
	FindDefaultForUser(ctx context.Context, tx Tx, userID, provider string) (*model.PaymentMethod, error)
}
