package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

var _ repository.PromoCodeRepository = (*promoRepo)(nil)

type promoRepo struct{ pool *pgxpool.Pool }

func NewPromoRepo(pool *pgxpool.Pool) *promoRepo {
	return &promoRepo{pool: pool}
}

const promoColumns = `id, code, type, value, bonus_days, min_purchase_amount, applicable_tariff_ids, max_activations, used_count, is_active, valid_until, created_at`

func (r *promoRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `
INSERT INTO promo_codes (` + promoColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  code=$2, type=$3, value=$4, bonus_days=$5, min_purchase_amount=$6,
  applicable_tariff_ids=$7, max_activations=$8, is_active=$10, valid_until=$11;`

	// used_count is excluded from the update set: only Redeem moves it.
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Code, p.Type, p.Value, p.BonusDays, p.MinPurchaseAmount,
		p.ApplicableTariffIDs, p.MaxActivations, p.UsedCount, p.IsActive, p.ValidUntil, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	const q = `SELECT ` + promoColumns + ` FROM promo_codes WHERE code=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanPromo(row)
}

func (r *promoRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromoCode, error) {
	const q = `SELECT ` + promoColumns + ` FROM promo_codes WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPromo(row)
}

func (r *promoRepo) HasActivation(ctx context.Context, tx repository.Tx, promoID, userID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM promo_activations WHERE promo_code_id=$1 AND user_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, promoID, userID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

// Redeem guards the activation limit in the UPDATE predicate: two concurrent
// redemptions of the last slot race on the row lock and the loser matches
// zero rows. The unique index on (promo_code_id, user_id) rejects per-user
// reuse the same way.
func (r *promoRepo) Redeem(ctx context.Context, tx repository.Tx, promoID, userID string, paymentID *string) error {
	const incr = `
UPDATE promo_codes SET used_count = used_count + 1
WHERE id=$1 AND (max_activations IS NULL OR used_count < max_activations);`
	tag, err := execSQL(ctx, r.pool, tx, incr, promoID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPromoExhausted
	}

	const ins = `
INSERT INTO promo_activations (promo_code_id, user_id, payment_id, activated_at)
VALUES ($1,$2,$3,NOW());`
	if _, err := execSQL(ctx, r.pool, tx, ins, promoID, userID, paymentID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrPromoAlreadyUsed
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPromo(row pgx.Row) (*model.PromoCode, error) {
	p := &model.PromoCode{}
	err := row.Scan(&p.ID, &p.Code, &p.Type, &p.Value, &p.BonusDays, &p.MinPurchaseAmount,
		&p.ApplicableTariffIDs, &p.MaxActivations, &p.UsedCount, &p.IsActive, &p.ValidUntil, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
