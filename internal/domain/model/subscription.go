package model

import (
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
)

// Subscription is the locally authoritative entitlement record. The panel is
// synchronized to it, never the other way around.
type Subscription struct {
	ID                string // UUID
	UserID            string // UUID
	TariffID          *string
	ProvisioningUUID  string // panel-side user identity
	StartDate         time.Time
	EndDate           time.Time
	IsActive          bool
	AutoRenewEnabled  bool
	Provider          string // provider of the last payment that touched it
	TrafficLimitBytes *int64
	DeviceLimit       *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s *Subscription) IsZero() bool { return s == nil || s.ID == "" }

// Current reports whether the subscription grants access at t.
func (s *Subscription) Current(t time.Time) bool {
	return s.IsActive && s.EndDate.After(t)
}

// NewSubscription constructs an active subscription starting now.
func NewSubscription(id, userID, provisioningUUID string, start, end time.Time) (*Subscription, error) {
	if id == "" || userID == "" || provisioningUUID == "" || end.Before(start) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:               id,
		UserID:           userID,
		ProvisioningUUID: provisioningUUID,
		StartDate:        start,
		EndDate:          end,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
