package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

// renewalDedupWindow bounds the HasPendingRenewal lookback so one abandoned
// pending charge does not block renewals forever.
const renewalDedupWindow = 48 * time.Hour

// The payment row is saved with a placeholder external id before the provider
// call so a crash cannot double-charge; the real id replaces it right after.
// A placeholder that survives past the TTL means the process died in between,
// and the row must be failed or it suppresses renewals for the dedup window.
const (
	renewalPlaceholderPrefix = "renewal:"
	renewalPlaceholderTTL    = time.Hour
)

// RenewalUseCase initiates auto-renewal charges for subscriptions nearing
// expiry. It only starts payments; reconciliation of the provider's
// notification extends the subscription through the same path as any other
// purchase.
type RenewalUseCase interface {
	// RunOnce scans for expiring auto-renew subscriptions and attempts at most
	// one recurring charge per subscription. Per-subscription failures are
	// logged and skipped, never aborting the sweep.
	RunOnce(ctx context.Context, window time.Duration) error
}

var _ RenewalUseCase = (*renewalUC)(nil)

type renewalUC struct {
	subs     repository.SubscriptionRepository
	tariffs  repository.TariffRepository
	payments repository.PaymentRepository
	methods  repository.PaymentMethodRepository
	pricing  PricingUseCase
	gateways map[string]adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewRenewalUseCase(
	subs repository.SubscriptionRepository,
	tariffs repository.TariffRepository,
	payments repository.PaymentRepository,
	methods repository.PaymentMethodRepository,
	pricing PricingUseCase,
	gateways map[string]adapter.PaymentGateway,
	logger *zerolog.Logger,
) *renewalUC {
	l := logger.With().Str("component", "RenewalUC").Logger()
	return &renewalUC{
		subs: subs, tariffs: tariffs, payments: payments, methods: methods,
		pricing: pricing, gateways: gateways, log: &l,
	}
}

func (u *renewalUC) RunOnce(ctx context.Context, window time.Duration) error {
	stale, err := u.payments.FailStaleByExternalIDPrefix(ctx, repository.NoTX, renewalPlaceholderPrefix, time.Now().Add(-renewalPlaceholderTTL))
	if err != nil {
		return err
	}
	if stale > 0 {
		u.log.Warn().Int("count", stale).Msg("failed stale renewal placeholders")
	}

	due, err := u.subs.FindExpiring(ctx, repository.NoTX, window)
	if err != nil {
		return err
	}
	for _, sub := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := u.renewOne(ctx, sub); err != nil {
			metrics.IncRenewalAttempt("error")
			u.log.Warn().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("user_id", sub.UserID).
				Msg("renewal attempt failed")
		}
	}
	return nil
}

func (u *renewalUC) renewOne(ctx context.Context, sub *model.Subscription) error {
	if sub.TariffID == nil {
		metrics.IncRenewalAttempt("skipped")
		return nil
	}
	gw, ok := u.gateways[sub.Provider]
	if !ok || !gw.SupportsRecurring() {
		metrics.IncRenewalAttempt("skipped")
		return nil
	}

	// At most one charge attempt per subscription per window.
	pending, err := u.payments.HasPendingRenewal(ctx, repository.NoTX, sub.ID, time.Now().Add(-renewalDedupWindow))
	if err != nil {
		return err
	}
	if pending {
		metrics.IncRenewalAttempt("skipped")
		return nil
	}

	method, err := u.methods.FindDefaultForUser(ctx, repository.NoTX, sub.UserID, sub.Provider)
	if err != nil {
		metrics.IncRenewalAttempt("skipped")
		return nil
	}

	// Personal discounts apply on renewal; promo codes do not carry over.
	quote, err := u.pricing.Quote(ctx, sub.UserID, *sub.TariffID, "")
	if err != nil {
		return err
	}

	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		UserID:         sub.UserID,
		Provider:       sub.Provider,
		ExternalID:     renewalPlaceholderPrefix + uuid.NewString(),
		Amount:         quote.FinalPrice,
		Currency:       quote.Currency,
		Status:         model.PaymentStatusPending,
		TariffID:       sub.TariffID,
		Description:    "subscription auto-renewal",
		SubscriptionID: &sub.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return err
	}

	created, err := gw.CreateRecurringCharge(ctx, method.ProviderMethodID, quote.FinalPrice, quote.Currency, "subscription auto-renewal")
	if err != nil {
		if _, uerr := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, nil); uerr != nil {
			u.log.Error().Err(uerr).Str("payment_id", p.ID).Msg("failed to mark renewal payment failed")
		}
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	p.ExternalID = created.ExternalID
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return err
	}

	metrics.IncRenewalAttempt("initiated")
	u.log.Info().
		Str("subscription_id", sub.ID).
		Str("payment_id", p.ID).
		Int64("amount", quote.FinalPrice).
		Msg("renewal charge initiated")
	return nil
}
