package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// TariffRepository is the port for tariff persistence.
type TariffRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Tariff) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tariff, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Tariff, error)
	FindDefault(ctx context.Context, tx Tx) (*model.Tariff, error)
}
