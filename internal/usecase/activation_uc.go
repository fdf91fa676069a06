package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

// DefaultLimits apply to month-based grants that carry no tariff.
type DefaultLimits struct {
	TrafficLimitBytes *int64
	DeviceLimit       *int
}

// ActivationUseCase turns a succeeded payment into entitlement time.
// ActivateForPayment runs inside the caller's fulfillment transaction; the
// provisioning identity is ensured beforehand because it is an external call
// and must not sit inside a database transaction.
type ActivationUseCase interface {
	// EnsureIdentity looks up or creates the panel identity for the user,
	// keyed on the stable user key (idempotent by construction), and persists
	// the uuid on the user row.
	EnsureIdentity(ctx context.Context, user *model.User) (string, error)

	// ActivateForPayment creates or extends the user's subscription and
	// enqueues the entitlement push. An existing active subscription extends
	// from max(now, current end) so paid time is never lost on early renewal.
	ActivateForPayment(ctx context.Context, tx repository.Tx, p *model.Payment, promo *model.PromoCode, provisioningUUID string) (*model.Subscription, error)
}

var _ ActivationUseCase = (*activationUC)(nil)

type activationUC struct {
	subs     repository.SubscriptionRepository
	tariffs  repository.TariffRepository
	users    repository.UserRepository
	methods  repository.PaymentMethodRepository
	outbox   repository.OutboxRepository
	panel    adapter.ProvisioningClient
	gateways map[string]adapter.PaymentGateway
	autopay  bool
	defaults DefaultLimits
	log      *zerolog.Logger
}

func NewActivationUseCase(
	subs repository.SubscriptionRepository,
	tariffs repository.TariffRepository,
	users repository.UserRepository,
	methods repository.PaymentMethodRepository,
	outbox repository.OutboxRepository,
	panel adapter.ProvisioningClient,
	gateways map[string]adapter.PaymentGateway,
	autopay bool,
	defaults DefaultLimits,
	logger *zerolog.Logger,
) *activationUC {
	l := logger.With().Str("component", "ActivationUC").Logger()
	return &activationUC{
		subs: subs, tariffs: tariffs, users: users, methods: methods,
		outbox: outbox, panel: panel, gateways: gateways,
		autopay: autopay, defaults: defaults, log: &l,
	}
}

func (u *activationUC) EnsureIdentity(ctx context.Context, user *model.User) (string, error) {
	if user.IsZero() {
		return "", domain.ErrInvalidArgument
	}
	if user.ProvisioningUUID != nil && *user.ProvisioningUUID != "" {
		return *user.ProvisioningUUID, nil
	}
	id, err := u.panel.CreateOrGetIdentity(ctx, user.ProvisioningKey(), user.TelegramID)
	if err != nil {
		return "", err
	}
	if err := u.users.SetProvisioningUUID(ctx, repository.NoTX, user.ID, id); err != nil {
		return "", err
	}
	u.log.Info().Str("user_id", user.ID).Str("provisioning_uuid", id).Msg("panel identity created")
	return id, nil
}

func (u *activationUC) ActivateForPayment(ctx context.Context, tx repository.Tx, p *model.Payment, promo *model.PromoCode, provisioningUUID string) (*model.Subscription, error) {
	if p == nil || provisioningUUID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var tariff *model.Tariff
	if p.TariffID != nil {
		t, err := u.tariffs.FindByID(ctx, tx, *p.TariffID)
		if err != nil {
			return nil, err
		}
		tariff = t
	}

	now := time.Now()
	existing, err := u.subs.FindActiveByUser(ctx, tx, p.UserID)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}

	// Extension base: never earlier than now, never loses remaining paid time.
	base := now
	if existing != nil && existing.EndDate.After(now) {
		base = existing.EndDate
	}

	end := u.grantEnd(base, tariff, p.Months)
	if promo != nil {
		effect, err := promo.Effect()
		if err != nil {
			return nil, err
		}
		switch e := effect.(type) {
		case model.BonusDaysEffect:
			end = end.AddDate(0, 0, e.Days)
		case model.DiscountEffect, model.BalanceEffect:
			// Already settled in pricing / ledger fulfillment.
		}
	}

	traffic, devices := u.defaults.TrafficLimitBytes, u.defaults.DeviceLimit
	if tariff != nil {
		traffic, devices = tariff.TrafficLimitBytes, tariff.DeviceLimit
	}

	sub := existing
	if sub == nil {
		sub = &model.Subscription{
			ID:        uuid.NewString(),
			UserID:    p.UserID,
			CreatedAt: now,
			StartDate: now,
		}
	}
	sub.TariffID = p.TariffID
	sub.ProvisioningUUID = provisioningUUID
	sub.EndDate = end
	sub.IsActive = true
	sub.Provider = p.Provider
	sub.TrafficLimitBytes = traffic
	sub.DeviceLimit = devices
	sub.AutoRenewEnabled = u.autoRenewEligible(ctx, tx, p)
	sub.UpdatedAt = now

	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}

	task := &model.SyncTask{
		ID:                newULID(),
		UserID:            p.UserID,
		ProvisioningUUID:  provisioningUUID,
		Kind:              model.SyncTaskUpdateEntitlement,
		ExpireAt:          end,
		TrafficLimitBytes: traffic,
		DeviceLimit:       devices,
		Status:            model.SyncTaskPending,
		NextAttemptAt:     now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.outbox.Enqueue(ctx, tx, task); err != nil {
		return nil, err
	}

	metrics.IncSubscriptionActivated()
	u.log.Info().
		Str("user_id", p.UserID).
		Str("subscription_id", sub.ID).
		Time("end_date", end).
		Bool("auto_renew", sub.AutoRenewEnabled).
		Msg("subscription activated")
	return sub, nil
}

// grantEnd computes the new end date from the tariff's fixed duration, or
// from the requested number of calendar months when no tariff is set.
func (u *activationUC) grantEnd(base time.Time, tariff *model.Tariff, months *int) time.Time {
	if tariff != nil {
		return base.AddDate(0, 0, tariff.DurationDays)
	}
	m := 1
	if months != nil && *months > 0 {
		m = *months
	}
	return base.AddDate(0, m, 0)
}

// autoRenewEligible: provider supports recurring charges AND a saved method
// exists AND the global auto-pay flag is on.
func (u *activationUC) autoRenewEligible(ctx context.Context, tx repository.Tx, p *model.Payment) bool {
	if !u.autopay {
		return false
	}
	gw, ok := u.gateways[p.Provider]
	if !ok || !gw.SupportsRecurring() {
		return false
	}
	method, err := u.methods.FindDefaultForUser(ctx, tx, p.UserID, p.Provider)
	return err == nil && method != nil
}
