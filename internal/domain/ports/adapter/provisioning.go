package adapter

import (
	"context"
	"time"
)

// Entitlement is the slice of local subscription state the panel needs.
type Entitlement struct {
	ExpireAt          time.Time
	TrafficLimitBytes *int64
	DeviceLimit       *int
	Enabled           bool
}

// IdentityStatus is the panel's view of a provisioned user.
type IdentityStatus struct {
	UUID     string
	Status   string
	ExpireAt time.Time
}

// ProvisioningClient is the hex port for the external VPN panel. All calls
// are fallible and retryable; local state never depends on their success.
type ProvisioningClient interface {
	// CreateOrGetIdentity is idempotent by construction: keyed on the user's
	// stable external key, it returns the existing identity when one exists.
	CreateOrGetIdentity(ctx context.Context, userKey string, telegramID int64) (uuid string, err error)

	UpdateEntitlement(ctx context.Context, uuid string, e Entitlement) error

	GetStatus(ctx context.Context, uuid string) (*IdentityStatus, error)
}
