package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

const outboxColumns = `id, user_id, provisioning_uuid, kind, expire_at, traffic_limit_bytes, device_limit, status, attempts, next_attempt_at, last_error, created_at, updated_at`

func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, t *model.SyncTask) error {
	const q = `
INSERT INTO sync_outbox (` + outboxColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.ProvisioningUUID, t.Kind, t.ExpireAt, t.TrafficLimitBytes, t.DeviceLimit,
		t.Status, t.Attempts, t.NextAttemptAt, t.LastError, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *outboxRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.SyncTask, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + outboxColumns + ` FROM sync_outbox
WHERE status='pending' AND next_attempt_at <= $1
ORDER BY id ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SyncTask
	for rows.Next() {
		t := &model.SyncTask{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.ProvisioningUUID, &t.Kind, &t.ExpireAt,
			&t.TrafficLimitBytes, &t.DeviceLimit, &t.Status, &t.Attempts, &t.NextAttemptAt,
			&t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *outboxRepo) CountPending(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `SELECT COUNT(*) FROM sync_outbox WHERE status='pending';`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE sync_outbox SET status='sent', updated_at=NOW() WHERE id=$1;`
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

func (r *outboxRepo) Reschedule(ctx context.Context, tx repository.Tx, id string, nextAttempt time.Time, lastErr string) error {
	const q = `
UPDATE sync_outbox
SET attempts = attempts + 1, next_attempt_at=$2, last_error=$3, updated_at=NOW()
WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, nextAttempt, lastErr)
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
