package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created at checkout; awaiting provider notification
	PaymentStatusSucceeded PaymentStatus = "succeeded" // confirmed by a verified notification
	PaymentStatusFailed    PaymentStatus = "failed"    // provider reported failure
	PaymentStatusRefunded  PaymentStatus = "refunded"  // explicit refund action, only from succeeded
)

// Payment records an external payment intent. (Provider, ExternalID) is the
// idempotency key across duplicate webhook deliveries.
type Payment struct {
	ID          string // UUID
	UserID      string // UUID
	Provider    string // e.g. "yookassa", "cryptopay"
	ExternalID  string // provider-side payment id
	Amount      int64  // minor units
	Currency    string
	Status      PaymentStatus
	TariffID    *string // nil for balance top-ups
	PromoCodeID *string // promo quoted at checkout, redeemed on success
	Months      *int    // requested duration when no tariff is set
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	// Link to the subscription created/extended by this payment, set after fulfillment.
	SubscriptionID *string
	// Set when the payment buys a gift; fulfillment then marks the gift paid
	// instead of activating the buyer.
	GiftID *string
}

// ForSubscription reports whether fulfillment grants entitlement time
// rather than a balance top-up.
func (p *Payment) ForSubscription() bool {
	return p.TariffID != nil || p.Months != nil
}

// NotificationStatus is the provider-agnostic outcome carried by a webhook.
type NotificationStatus string

const (
	NotificationSucceeded NotificationStatus = "succeeded"
	NotificationFailed    NotificationStatus = "failed"
)

// SavedPaymentMethod is an off-session instrument the provider saved while
// capturing a payment, carried on the notification so fulfillment can persist
// it for auto-renewal.
type SavedPaymentMethod struct {
	ProviderMethodID string
	CardLast4        string
	CardNetwork      string
}

// PaymentNotification is a verified, normalized webhook payload. Adapters
// produce it; reconciliation consumes it without branching on provider.
type PaymentNotification struct {
	Provider   string
	ExternalID string
	Status     NotificationStatus
	Amount     int64 // minor units
	Currency   string
	// Non-nil only when the provider reports the instrument as saved.
	Method *SavedPaymentMethod
}
