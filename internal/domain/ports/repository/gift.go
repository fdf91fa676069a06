package repository

import (
	"context"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// GiftRepository is the port for gifted subscriptions.
type GiftRepository interface {
	Save(ctx context.Context, tx Tx, g *model.Gift) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Gift, error)

	// MarkPaidIfPending flips pending_payment→paid, returning whether a row
	// was affected. Duplicate webhook deliveries make this a no-op.
	MarkPaidIfPending(ctx context.Context, tx Tx, id string) (bool, error)

	// ClaimIfPaid flips paid→claimed and records the recipient, returning
	// whether a row was affected. Concurrent claims race on this guard; only
	// one wins.
	ClaimIfPaid(ctx context.Context, tx Tx, id, recipientUserID string) (bool, error)

	// Cancel flips pending_payment→canceled after a failed payment.
	Cancel(ctx context.Context, tx Tx, id string) error
}
