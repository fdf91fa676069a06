package model

import (
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
)

// Tariff is a purchasable plan with a fixed duration, price and service limits.
// A tariff referenced by a historical payment must never change price in place;
// admins deactivate and create a new row instead.
type Tariff struct {
	ID                string
	Name              string
	Description       string
	Price             int64 // minor units
	Currency          string
	DurationDays      int
	TrafficLimitBytes *int64
	DeviceLimit       *int
	SpeedLimitMbps    *float64
	IsActive          bool
	IsDefault         bool
	CreatedAt         time.Time
}

func (t *Tariff) IsZero() bool { return t == nil || t.ID == "" }

// NewTariff validates and constructs a tariff.
func NewTariff(id, name string, price int64, currency string, durationDays int) (*Tariff, error) {
	if id == "" || name == "" || price <= 0 || currency == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Tariff{
		ID:           id,
		Name:         name,
		Price:        price,
		Currency:     currency,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}
