package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

var _ repository.PaymentMethodRepository = (*paymentMethodRepo)(nil)

type paymentMethodRepo struct{ pool *pgxpool.Pool }

func NewPaymentMethodRepo(pool *pgxpool.Pool) *paymentMethodRepo {
	return &paymentMethodRepo{pool: pool}
}

func (r *paymentMethodRepo) Save(ctx context.Context, tx repository.Tx, m *model.PaymentMethod) error {
	const q = `
INSERT INTO payment_methods (id, user_id, provider, provider_method_id, card_last4, card_network, is_default, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  provider_method_id=$4, card_last4=$5, card_network=$6, is_default=$7;`

	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.UserID, m.Provider, m.ProviderMethodID, m.CardLast4, m.CardNetwork, m.IsDefault, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentMethodRepo) FindDefaultForUser(ctx context.Context, tx repository.Tx, userID, provider string) (*model.PaymentMethod, error) {
	const q = `
SELECT id, user_id, provider, provider_method_id, card_last4, card_network, is_default, created_at
FROM payment_methods
WHERE user_id=$1 AND provider=$2 AND is_default
ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, provider)
	if err != nil {
		return nil, err
	}

	m := &model.PaymentMethod{}
	if err := row.Scan(&m.ID, &m.UserID, &m.Provider, &m.ProviderMethodID, &m.CardLast4, &m.CardNetwork, &m.IsDefault, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}
