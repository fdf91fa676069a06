package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
)

// User holds the cached balance and the stable key used to derive the
// panel-side identity. Balance is only ever mutated together with a ledger row.
type User struct {
	ID               string
	TelegramID       int64
	Username         string
	Balance          int64   // minor units, cache over the ledger
	ProvisioningUUID *string // panel user uuid once created
	RegisteredAt     time.Time
	LastActiveAt     time.Time
}

func NewUser(id string, tgID int64, username string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		TelegramID:   tgID,
		Username:     username,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// ProvisioningKey is the stable external key the panel identity is created
// under; idempotent create-or-get hangs off it.
func (u *User) ProvisioningKey() string { return u.ID }
