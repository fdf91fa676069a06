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

var _ repository.TariffRepository = (*tariffRepo)(nil)

type tariffRepo struct{ pool *pgxpool.Pool }

func NewTariffRepo(pool *pgxpool.Pool) *tariffRepo {
	return &tariffRepo{pool: pool}
}

const tariffColumns = `id, name, description, price, currency, duration_days, traffic_limit_bytes, device_limit, speed_limit_mbps, is_active, is_default, created_at`

func (r *tariffRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	const q = `
INSERT INTO tariffs (` + tariffColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  name=$2, description=$3, price=$4, currency=$5, duration_days=$6,
  traffic_limit_bytes=$7, device_limit=$8, speed_limit_mbps=$9,
  is_active=$10, is_default=$11;`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.Name, t.Description, t.Price, t.Currency, t.DurationDays,
		t.TrafficLimitBytes, t.DeviceLimit, t.SpeedLimitMbps, t.IsActive, t.IsDefault, t.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *tariffRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	const q = `SELECT ` + tariffColumns + ` FROM tariffs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func (r *tariffRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	const q = `SELECT ` + tariffColumns + ` FROM tariffs WHERE is_active ORDER BY price ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tariffRepo) FindDefault(ctx context.Context, tx repository.Tx) (*model.Tariff, error) {
	const q = `SELECT ` + tariffColumns + ` FROM tariffs WHERE is_active AND is_default LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func scanTariff(row pgx.Row) (*model.Tariff, error) {
	t := &model.Tariff{}
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.Currency, &t.DurationDays,
		&t.TrafficLimitBytes, &t.DeviceLimit, &t.SpeedLimitMbps, &t.IsActive, &t.IsDefault, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}
