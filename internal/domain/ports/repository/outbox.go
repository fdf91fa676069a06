package repository

import (
	"context"
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// OutboxRepository is the port for the provisioning pending-sync queue.
type OutboxRepository interface {
	Enqueue(ctx context.Context, tx Tx, t *model.SyncTask) error

	// ListDue returns pending tasks whose next attempt time has passed,
	// oldest first.
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.SyncTask, error)

	MarkSent(ctx context.Context, tx Tx, id string) error

	// CountPending returns the current outbox backlog size.
	CountPending(ctx context.Context, tx Tx) (int, error)

	// Reschedule bumps the attempt counter and sets the next attempt time
	// after a failed push.
	Reschedule(ctx context.Context, tx Tx, id string, nextAttempt time.Time, lastErr string) error
}
