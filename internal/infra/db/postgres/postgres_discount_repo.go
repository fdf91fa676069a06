package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

var _ repository.DiscountRepository = (*discountRepo)(nil)

type discountRepo struct{ pool *pgxpool.Pool }

func NewDiscountRepo(pool *pgxpool.Pool) *discountRepo {
	return &discountRepo{pool: pool}
}

func (r *discountRepo) Save(ctx context.Context, tx repository.Tx, d *model.UserDiscount) error {
	const q = `
INSERT INTO user_discounts (id, user_id, discount_percentage, tariff_id, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  discount_percentage=$3, tariff_id=$4, is_active=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.UserID, d.DiscountPercentage, d.TariffID, d.IsActive, d.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *discountRepo) ListActiveForUser(ctx context.Context, tx repository.Tx, userID, tariffID string) ([]*model.UserDiscount, error) {
	const q = `
SELECT id, user_id, discount_percentage, tariff_id, is_active, created_at
FROM user_discounts
WHERE user_id=$1 AND is_active AND (tariff_id IS NULL OR tariff_id=$2);`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, tariffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.UserDiscount
	for rows.Next() {
		d := &model.UserDiscount{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.DiscountPercentage, &d.TariffID, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
