package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, tariff_id, provisioning_uuid, start_date, end_date, is_active, auto_renew_enabled, provider, traffic_limit_bytes, device_limit, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  tariff_id=$3, provisioning_uuid=$4, start_date=$5, end_date=$6,
  is_active=$7, auto_renew_enabled=$8, provider=$9,
  traffic_limit_bytes=$10, device_limit=$11, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.TariffID, s.ProvisioningUUID, s.StartDate, s.EndDate,
		s.IsActive, s.AutoRenewEnabled, s.Provider, s.TrafficLimitBytes, s.DeviceLimit, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 AND is_active ORDER BY end_date DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindExpiring(ctx context.Context, tx repository.Tx, window time.Duration) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE is_active AND auto_renew_enabled AND end_date BETWEEN NOW() AND NOW() + $1
ORDER BY end_date ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, window)
	if err != nil {
		return nil, err
	}
	return collectSubscriptions(rows)
}

func (r *subscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE is_active AND end_date < NOW()
ORDER BY end_date ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	return collectSubscriptions(rows)
}

func (r *subscriptionRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE subscriptions SET is_active=FALSE, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectSubscriptions(rows pgx.Rows) ([]*model.Subscription, error) {
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.TariffID, &s.ProvisioningUUID, &s.StartDate, &s.EndDate,
		&s.IsActive, &s.AutoRenewEnabled, &s.Provider, &s.TrafficLimitBytes, &s.DeviceLimit, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
