package adapter

import (
	"context"
	"net/http"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// CreatedPayment is the provider-side result of initiating a payment.
type CreatedPayment struct {
	ExternalID string // provider payment id; half of the idempotency key
	PayURL     string // where the user completes the payment
}

// PaymentGateway is the hex port for payment providers. Implementations
// normalize materially different signature schemes and payload shapes so the
// reconciliation path never branches on provider identity.
type PaymentGateway interface {
	Name() string

	// CreatePayment initiates a payment intent on the provider side.
	CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string) (*CreatedPayment, error)

	// VerifyWebhook authenticates the raw request body against the provider's
	// keyed digest (constant-time compare) and normalizes the payload.
	// A bad signature returns domain.ErrSignatureVerification and must never
	// reach business logic; a malformed body returns domain.ErrInvalidArgument.
	VerifyWebhook(body []byte, header http.Header) (*model.PaymentNotification, error)

	// SupportsRecurring reports the optional off-session charge capability.
	SupportsRecurring() bool

	// CreateRecurringCharge charges a saved payment method without user
	// interaction. Only valid when SupportsRecurring is true.
	CreateRecurringCharge(ctx context.Context, methodID string, amount int64, currency, description string) (*CreatedPayment, error)
}
