package repository

import (
	"context"
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// PaymentRepository is the port for locally tracked payment records.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)

	// FindByProviderExternalID resolves the idempotency key for webhook
	// deliveries; inside a transaction the row is read FOR UPDATE.
	FindByProviderExternalID(ctx context.Context, tx Tx, provider, externalID string) (*model.Payment, error)

	// UpdateStatusIfPending flips status only when the row is still pending,
	// returning whether a row was affected. This is the monotonic-transition
	// guard against duplicate deliveries racing each other.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error)

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
	SetSubscriptionID(ctx context.Context, tx Tx, paymentID, subscriptionID string) error

	// HasPendingRenewal reports whether a pending auto-renewal payment exists
	// for the subscription, created after the given cutoff.
	HasPendingRenewal(ctx context.Context, tx Tx, subscriptionID string, since time.Time) (bool, error)

	// FailStaleByExternalIDPrefix marks pending payments older than the cutoff
	// whose external id still carries the given placeholder prefix as failed,
	// returning how many rows were affected. A crash between creating a charge
	// record and storing the provider's id leaves such rows behind.
	FailStaleByExternalIDPrefix(ctx context.Context, tx Tx, prefix string, olderThan time.Time) (int, error)
}
