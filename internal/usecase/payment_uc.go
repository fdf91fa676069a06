package usecase

import (
	"context"
	"errors"
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

// PaymentUseCase owns the payment lifecycle: checkout creates pending
// records, HandleNotification reconciles verified provider callbacks exactly
// once, Refund is the only path out of succeeded.
type PaymentUseCase interface {
	// Checkout quotes the tariff, creates a provider payment intent and a
	// local pending Payment, and returns the redirect URL.
	Checkout(ctx context.Context, userID, tariffID, promoCode, provider, returnURL string) (*model.Payment, string, error)

	// TopUp creates a pending balance top-up payment.
	TopUp(ctx context.Context, userID string, amount int64, currency, provider, returnURL string) (*model.Payment, string, error)

	// PurchaseWithBalance pays for a tariff from the ledger balance; no
	// external provider is involved and fulfillment happens immediately.
	PurchaseWithBalance(ctx context.Context, userID, tariffID, promoCode string) (*model.Payment, error)

	// HandleNotification advances the payment state machine for one verified
	// notification. Duplicate deliveries are acknowledged no-ops.
	HandleNotification(ctx context.Context, n *model.PaymentNotification) error

	// Refund flips succeeded→refunded and writes the ledger refund entry in
	// one transaction. Granted subscription time is not revoked.
	Refund(ctx context.Context, paymentID, reason string) error
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	payments   repository.PaymentRepository
	users      repository.UserRepository
	promos     repository.PromoCodeRepository
	methods    repository.PaymentMethodRepository
	gifts      repository.GiftRepository
	pricing    PricingUseCase
	ledger     LedgerUseCase
	activation ActivationUseCase
	sync       SyncUseCase
	tm         repository.TransactionManager
	locker     adapter.UserLocker
	gateways   map[string]adapter.PaymentGateway
	log        *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	promos repository.PromoCodeRepository,
	methods repository.PaymentMethodRepository,
	gifts repository.GiftRepository,
	pricing PricingUseCase,
	ledger LedgerUseCase,
	activation ActivationUseCase,
	sync SyncUseCase,
	tm repository.TransactionManager,
	locker adapter.UserLocker,
	gateways map[string]adapter.PaymentGateway,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments: payments, users: users, promos: promos, methods: methods, gifts: gifts,
		pricing: pricing, ledger: ledger, activation: activation, sync: sync,
		tm: tm, locker: locker, gateways: gateways, log: &l,
	}
}

func (u *paymentUC) Checkout(ctx context.Context, userID, tariffID, promoCode, provider, returnURL string) (*model.Payment, string, error) {
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, "", domain.ErrInvalidArgument
	}
	quote, err := u.pricing.Quote(ctx, userID, tariffID, promoCode)
	if err != nil {
		return nil, "", err
	}

	created, err := gw.CreatePayment(ctx, quote.FinalPrice, quote.Currency, "subscription purchase", returnURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Provider:    gw.Name(),
		ExternalID:  created.ExternalID,
		Amount:      quote.FinalPrice,
		Currency:    quote.Currency,
		Status:      model.PaymentStatusPending,
		TariffID:    &quote.TariffID,
		PromoCodeID: quote.PromoCodeID,
		Description: "subscription purchase",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, "", err
	}
	metrics.IncPayment("pending")
	return p, created.PayURL, nil
}

func (u *paymentUC) TopUp(ctx context.Context, userID string, amount int64, currency, provider, returnURL string) (*model.Payment, string, error) {
	if amount <= 0 {
		return nil, "", domain.ErrInvalidArgument
	}
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, "", domain.ErrInvalidArgument
	}
	created, err := gw.CreatePayment(ctx, amount, currency, "balance top-up", returnURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Provider:    gw.Name(),
		ExternalID:  created.ExternalID,
		Amount:      amount,
		Currency:    currency,
		Status:      model.PaymentStatusPending,
		Description: "balance top-up",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, "", err
	}
	metrics.IncPayment("pending")
	return p, created.PayURL, nil
}

func (u *paymentUC) PurchaseWithBalance(ctx context.Context, userID, tariffID, promoCode string) (*model.Payment, error) {
	quote, err := u.pricing.Quote(ctx, userID, tariffID, promoCode)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	provUUID, err := u.activation.EnsureIdentity(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	token, err := u.locker.LockUser(ctx, userID, userLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = u.locker.UnlockUser(ctx, userID, token) }()

	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Provider:    "balance",
		ExternalID:  uuid.NewString(),
		Amount:      quote.FinalPrice,
		Currency:    quote.Currency,
		Status:      model.PaymentStatusSucceeded,
		TariffID:    &quote.TariffID,
		PromoCodeID: quote.PromoCodeID,
		Description: "subscription purchase from balance",
		CreatedAt:   now,
		UpdatedAt:   now,
		PaidAt:      &now,
	}
	err = u.tm.WithUserTx(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		if quote.FinalPrice > 0 {
			if _, err := u.ledger.ChargeTx(ctx, tx, userID, quote.FinalPrice, quote.Currency, "subscription purchase"); err != nil {
				return err
			}
		}
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		return u.fulfill(ctx, tx, p, provUUID)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment("succeeded")
	u.pushEntitlements(ctx)
	return p, nil
}

// HandleNotification is the reconciliation state machine entry point.
// pending→succeeded and pending→failed are the only transitions it performs;
// anything already succeeded is a duplicate delivery and a silent ack.
func (u *paymentUC) HandleNotification(ctx context.Context, n *model.PaymentNotification) error {
	p, err := u.payments.FindByProviderExternalID(ctx, repository.NoTX, n.Provider, n.ExternalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && n.Status == model.NotificationSucceeded {
			// A paid-for order we know nothing about: never fabricate a
			// Payment, alert and let a human reconcile.
			metrics.IncReconcileFailure(n.Provider)
			u.log.Error().
				Str("provider", n.Provider).
				Str("external_id", n.ExternalID).
				Int64("amount", n.Amount).
				Msg("succeeded notification for unknown payment")
		}
		return err
	}

	// Cheap duplicate check before taking any locks.
	if p.Status == model.PaymentStatusSucceeded || p.Status == model.PaymentStatusRefunded {
		metrics.IncDuplicateNotification(n.Provider)
		return nil
	}

	if n.Status == model.NotificationSucceeded && n.Amount != 0 && n.Amount != p.Amount {
		metrics.IncReconcileFailure(n.Provider)
		u.log.Error().
			Str("payment_id", p.ID).
			Int64("expected", p.Amount).
			Int64("got", n.Amount).
			Msg("notification amount mismatch")
		return domain.ErrConflict
	}

	// Panel identity is an external call and must not run inside the
	// fulfillment transaction. A failure here aborts reconciliation; the
	// provider's retry plus the idempotency check recovers safely. Gift
	// payments grant nothing to the buyer, so no identity is needed here.
	var provUUID string
	if n.Status == model.NotificationSucceeded && p.GiftID == nil && p.ForSubscription() {
		user, err := u.users.FindByID(ctx, repository.NoTX, p.UserID)
		if err != nil {
			return err
		}
		provUUID, err = u.activation.EnsureIdentity(ctx, user)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
		}
	}

	token, err := u.locker.LockUser(ctx, p.UserID, userLockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = u.locker.UnlockUser(ctx, p.UserID, token) }()

	fulfilled := false
	err = u.tm.WithUserTx(ctx, p.UserID, func(ctx context.Context, tx repository.Tx) error {
		// Re-read under lock: the state may have moved while we waited.
		cur, err := u.payments.FindByProviderExternalID(ctx, tx, n.Provider, n.ExternalID)
		if err != nil {
			return err
		}
		if cur.Status != model.PaymentStatusPending {
			metrics.IncDuplicateNotification(n.Provider)
			return nil
		}

		now := time.Now()
		switch n.Status {
		case model.NotificationFailed:
			if _, err := u.payments.UpdateStatusIfPending(ctx, tx, cur.ID, model.PaymentStatusFailed, nil); err != nil {
				return err
			}
			if cur.GiftID != nil {
				return u.gifts.Cancel(ctx, tx, *cur.GiftID)
			}
			return nil
		case model.NotificationSucceeded:
			ok, err := u.payments.UpdateStatusIfPending(ctx, tx, cur.ID, model.PaymentStatusSucceeded, &now)
			if err != nil {
				return err
			}
			if !ok {
				metrics.IncDuplicateNotification(n.Provider)
				return nil
			}
			if err := u.saveMethod(ctx, tx, cur, n.Method); err != nil {
				return err
			}
			if err := u.fulfill(ctx, tx, cur, provUUID); err != nil {
				return err
			}
			fulfilled = true
			return nil
		default:
			return domain.ErrInvalidArgument
		}
	})
	if err != nil {
		return err
	}

	switch n.Status {
	case model.NotificationFailed:
		metrics.IncPayment("failed")
		u.log.Info().Str("payment_id", p.ID).Msg("payment failed")
	case model.NotificationSucceeded:
		if fulfilled {
			metrics.IncPayment("succeeded")
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
			u.log.Info().Str("payment_id", p.ID).Int64("amount", p.Amount).Msg("payment reconciled")
			u.pushEntitlements(ctx)
		}
	}
	return nil
}

// saveMethod persists the off-session instrument the provider captured with
// the payment. Runs before activation in the same transaction so auto-renew
// eligibility sees the method immediately.
func (u *paymentUC) saveMethod(ctx context.Context, tx repository.Tx, p *model.Payment, m *model.SavedPaymentMethod) error {
	if m == nil || m.ProviderMethodID == "" {
		return nil
	}
	now := time.Now()
	method := &model.PaymentMethod{
		ID:               uuid.NewString(),
		UserID:           p.UserID,
		Provider:         p.Provider,
		ProviderMethodID: m.ProviderMethodID,
		CardLast4:        m.CardLast4,
		CardNetwork:      m.CardNetwork,
		IsDefault:        true,
		CreatedAt:        now,
	}
	if err := u.methods.Save(ctx, tx, method); err != nil {
		return err
	}
	u.log.Info().
		Str("user_id", p.UserID).
		Str("provider", p.Provider).
		Str("card_last4", m.CardLast4).
		Msg("payment method saved")
	return nil
}

// fulfill runs inside the status-flip transaction: promo redemption, balance
// credit and/or subscription activation commit or roll back together with the
// status change. Partial states are never observable.
func (u *paymentUC) fulfill(ctx context.Context, tx repository.Tx, p *model.Payment, provUUID string) error {
	var promo *model.PromoCode
	if p.PromoCodeID != nil {
		pc, err := u.promos.FindByID(ctx, tx, *p.PromoCodeID)
		if err != nil {
			return err
		}
		if err := u.promos.Redeem(ctx, tx, pc.ID, p.UserID, &p.ID); err != nil {
			return err
		}
		promo = pc
	}

	switch {
	case p.GiftID != nil:
		// The buyer gets nothing; entitlement time is granted when the
		// recipient claims.
		ok, err := u.gifts.MarkPaidIfPending(ctx, tx, *p.GiftID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConflict
		}
	case p.ForSubscription():
		sub, err := u.activation.ActivateForPayment(ctx, tx, p, promo, provUUID)
		if err != nil {
			return err
		}
		if err := u.payments.SetSubscriptionID(ctx, tx, p.ID, sub.ID); err != nil {
			return err
		}
	case p.Amount > 0:
		if _, err := u.ledger.DepositTx(ctx, tx, p.UserID, p.Amount, p.Currency, "balance top-up"); err != nil {
			return err
		}
	}

	if promo != nil {
		effect, err := promo.Effect()
		if err != nil {
			return err
		}
		if e, ok := effect.(model.BalanceEffect); ok {
			if _, err := u.ledger.DepositTx(ctx, tx, p.UserID, e.Amount, p.Currency, "promo code credit"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *paymentUC) Refund(ctx context.Context, paymentID, reason string) error {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return err
	}
	if p.Status != model.PaymentStatusSucceeded {
		return domain.ErrConflict
	}

	token, err := u.locker.LockUser(ctx, p.UserID, userLockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = u.locker.UnlockUser(ctx, p.UserID, token) }()

	err = u.tm.WithUserTx(ctx, p.UserID, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if cur.Status != model.PaymentStatusSucceeded {
			return domain.ErrConflict
		}
		if err := u.payments.UpdateStatus(ctx, tx, cur.ID, model.PaymentStatusRefunded); err != nil {
			return err
		}
		_, err = u.ledger.RefundTx(ctx, tx, cur.UserID, cur.Amount, cur.Currency, reason)
		return err
	})
	if err != nil {
		return err
	}
	metrics.IncPayment("refunded")
	u.log.Info().Str("payment_id", paymentID).Str("reason", reason).Msg("payment refunded")
	return nil
}

// pushEntitlements drains a handful of due outbox tasks right after a commit
// so the panel usually converges immediately; the outbox worker remains the
// guarantee when this best-effort push fails.
func (u *paymentUC) pushEntitlements(ctx context.Context) {
	if u.sync == nil {
		return
	}
	if _, err := u.sync.DrainDue(ctx, 10); err != nil {
		u.log.Warn().Err(err).Msg("post-commit entitlement push failed; outbox will retry")
	}
}
