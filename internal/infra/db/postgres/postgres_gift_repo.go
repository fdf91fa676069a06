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

var _ repository.GiftRepository = (*giftRepo)(nil)

type giftRepo struct{ pool *pgxpool.Pool }

func NewGiftRepo(pool *pgxpool.Pool) *giftRepo {
	return &giftRepo{pool: pool}
}

const giftColumns = `id, sender_user_id, recipient_user_id, tariff_id, payment_id, status, message, created_at, updated_at, claimed_at`

func (r *giftRepo) Save(ctx context.Context, tx repository.Tx, g *model.Gift) error {
	const q = `
INSERT INTO gifts (` + giftColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  recipient_user_id=$3, tariff_id=$4, payment_id=$5, status=$6, message=$7,
  updated_at=NOW(), claimed_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q,
		g.ID, g.SenderUserID, g.RecipientUserID, g.TariffID, g.PaymentID,
		g.Status, g.Message, g.CreatedAt, g.UpdatedAt, g.ClaimedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *giftRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Gift, error) {
	q := `SELECT ` + giftColumns + ` FROM gifts WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanGift(row)
}

func (r *giftRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE gifts SET status='paid', updated_at=NOW() WHERE id=$1 AND status='pending_payment';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *giftRepo) ClaimIfPaid(ctx context.Context, tx repository.Tx, id, recipientUserID string) (bool, error) {
	const q = `
UPDATE gifts SET status='claimed', recipient_user_id=$2, claimed_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status='paid';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, recipientUserID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *giftRepo) Cancel(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE gifts SET status='canceled', updated_at=NOW() WHERE id=$1 AND status='pending_payment';`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanGift(row pgx.Row) (*model.Gift, error) {
	g := &model.Gift{}
	err := row.Scan(&g.ID, &g.SenderUserID, &g.RecipientUserID, &g.TariffID, &g.PaymentID,
		&g.Status, &g.Message, &g.CreatedAt, &g.UpdatedAt, &g.ClaimedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}
