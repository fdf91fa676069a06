package model

import "time"

type GiftStatus string

const (
	GiftStatusPendingPayment GiftStatus = "pending_payment" // created at purchase, awaiting reconciliation
	GiftStatusPaid           GiftStatus = "paid"            // payment succeeded, claimable
	GiftStatusClaimed        GiftStatus = "claimed"         // recipient activated the grant
	GiftStatusCanceled       GiftStatus = "canceled"        // payment failed or purchase abandoned
)

// Gift is a subscription bought by one user for another. The sender pays
// through the normal payment path; entitlement time is granted only when the
// recipient claims.
type Gift struct {
	ID              string // UUID
	SenderUserID    string
	RecipientUserID *string // set at claim time
	TariffID        string
	PaymentID       string
	Status          GiftStatus
	Message         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClaimedAt       *time.Time
}

// Claimable reports whether the gift is paid for and still unclaimed.
func (g *Gift) Claimable() bool { return g.Status == GiftStatusPaid }
