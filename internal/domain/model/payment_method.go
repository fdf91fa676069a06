package model

import "time"

// PaymentMethod is a saved off-session instrument used by auto-renewal.
type PaymentMethod struct {
	ID               string
	UserID           string
	Provider         string
	ProviderMethodID string
	CardLast4        string
	CardNetwork      string
	IsDefault        bool
	CreatedAt        time.Time
}
