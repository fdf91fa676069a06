package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// LedgerRepository is the port for the append-only balance ledger.
type LedgerRepository interface {
	// AddEntry inserts the entry and moves the cached user balance by
	// entry.Amount in the same transaction. The balance must never change
	// without a corresponding row, so there is deliberately no separate
	// balance setter anywhere.
	AddEntry(ctx context.Context, tx Tx, entry *model.LedgerEntry) error

	History(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.LedgerEntry, error)

	// SumByUser recomputes the balance from entries; used by tests and audits.
	SumByUser(ctx context.Context, tx Tx, userID string) (int64, error)
}
