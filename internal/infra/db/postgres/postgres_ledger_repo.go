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

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

const ledgerColumns = `id, user_id, amount, currency, operation_type, description, created_at`

// AddEntry writes the ledger row and moves the cached balance in the same
// transaction. Callers must pass a live tx; the invariant that balance equals
// the entry sum is unenforceable across two autocommit statements.
func (r *ledgerRepo) AddEntry(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) error {
	if !inTx(tx) {
		return domain.ErrInvalidExecContext
	}

	const ins = `
INSERT INTO ledger_entries (` + ledgerColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	if _, err := execSQL(ctx, r.pool, tx, ins,
		entry.ID, entry.UserID, entry.Amount, entry.Currency, entry.OperationType, entry.Description, entry.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}

	const upd = `UPDATE users SET balance = balance + $2 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, upd, entry.UserID, entry.Amount)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ledgerRepo) History(ctx context.Context, tx repository.Tx, userID string, limit, offset int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + ledgerColumns + ` FROM ledger_entries
WHERE user_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e := &model.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Currency, &e.OperationType, &e.Description, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM ledger_entries WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
