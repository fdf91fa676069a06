package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

// GiftUseCase lets one user buy a subscription for another. The sender pays
// through the regular payment path; the grant is held until the recipient
// claims it, so the two sides never share a lock or a transaction.
type GiftUseCase interface {
	// Purchase quotes the tariff for the sender, creates a provider payment
	// intent and a pending gift, and returns the redirect URL. The gift
	// becomes claimable when the payment reconciles.
	Purchase(ctx context.Context, senderID, tariffID, promoCode, provider, returnURL, message string) (*model.Gift, *model.Payment, string, error)

	// Claim activates the gifted tariff for the recipient. Exactly one claim
	// wins; later attempts get ErrConflict.
	Claim(ctx context.Context, giftID, recipientUserID string) (*model.Subscription, error)

	Get(ctx context.Context, giftID string) (*model.Gift, error)
}

var _ GiftUseCase = (*giftUC)(nil)

type giftUC struct {
	gifts      repository.GiftRepository
	payments   repository.PaymentRepository
	users      repository.UserRepository
	promos     repository.PromoCodeRepository
	pricing    PricingUseCase
	activation ActivationUseCase
	sync       SyncUseCase
	tm         repository.TransactionManager
	locker     adapter.UserLocker
	gateways   map[string]adapter.PaymentGateway
	log        *zerolog.Logger
}

func NewGiftUseCase(
	gifts repository.GiftRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	promos repository.PromoCodeRepository,
	pricing PricingUseCase,
	activation ActivationUseCase,
	sync SyncUseCase,
	tm repository.TransactionManager,
	locker adapter.UserLocker,
	gateways map[string]adapter.PaymentGateway,
	logger *zerolog.Logger,
) *giftUC {
	l := logger.With().Str("component", "GiftUC").Logger()
	return &giftUC{
		gifts: gifts, payments: payments, users: users, promos: promos,
		pricing: pricing, activation: activation, sync: sync,
		tm: tm, locker: locker, gateways: gateways, log: &l,
	}
}

func (u *giftUC) Purchase(ctx context.Context, senderID, tariffID, promoCode, provider, returnURL, message string) (*model.Gift, *model.Payment, string, error) {
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, nil, "", domain.ErrInvalidArgument
	}
	quote, err := u.pricing.Quote(ctx, senderID, tariffID, promoCode)
	if err != nil {
		return nil, nil, "", err
	}

	created, err := gw.CreatePayment(ctx, quote.FinalPrice, quote.Currency, "gift subscription", returnURL)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	now := time.Now()
	gift := &model.Gift{
		ID:           uuid.NewString(),
		SenderUserID: senderID,
		TariffID:     quote.TariffID,
		Status:       model.GiftStatusPendingPayment,
		Message:      message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      senderID,
		Provider:    gw.Name(),
		ExternalID:  created.ExternalID,
		Amount:      quote.FinalPrice,
		Currency:    quote.Currency,
		Status:      model.PaymentStatusPending,
		TariffID:    &quote.TariffID,
		PromoCodeID: quote.PromoCodeID,
		Description: "gift subscription",
		GiftID:      &gift.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	gift.PaymentID = p.ID

	// Gift and payment commit together; a gift without its payment row (or
	// vice versa) must never be observable.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.gifts.Save(ctx, tx, gift); err != nil {
			return err
		}
		return u.payments.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, nil, "", err
	}

	metrics.IncPayment("pending")
	metrics.IncGift("purchased")
	u.log.Info().
		Str("gift_id", gift.ID).
		Str("sender_id", senderID).
		Str("tariff_id", tariffID).
		Int64("amount", quote.FinalPrice).
		Msg("gift purchase started")
	return gift, p, created.PayURL, nil
}

func (u *giftUC) Claim(ctx context.Context, giftID, recipientUserID string) (*model.Subscription, error) {
	gift, err := u.gifts.FindByID(ctx, repository.NoTX, giftID)
	if err != nil {
		return nil, err
	}
	if !gift.Claimable() {
		return nil, domain.ErrConflict
	}

	recipient, err := u.users.FindByID(ctx, repository.NoTX, recipientUserID)
	if err != nil {
		return nil, err
	}
	provUUID, err := u.activation.EnsureIdentity(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}

	token, err := u.locker.LockUser(ctx, recipientUserID, userLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = u.locker.UnlockUser(ctx, recipientUserID, token) }()

	var sub *model.Subscription
	err = u.tm.WithUserTx(ctx, recipientUserID, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.gifts.ClaimIfPaid(ctx, tx, giftID, recipientUserID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConflict
		}

		p, err := u.payments.FindByID(ctx, tx, gift.PaymentID)
		if err != nil {
			return err
		}
		// Bonus-days promos extend the grant; the extra time belongs to the
		// gift, so it lands on the recipient. The redemption itself happened
		// at the sender's fulfillment.
		var promo *model.PromoCode
		if p.PromoCodeID != nil {
			promo, err = u.promos.FindByID(ctx, tx, *p.PromoCodeID)
			if err != nil {
				return err
			}
		}

		grant := *p
		grant.UserID = recipientUserID
		sub, err = u.activation.ActivateForPayment(ctx, tx, &grant, promo, provUUID)
		if err != nil {
			return err
		}
		return u.payments.SetSubscriptionID(ctx, tx, p.ID, sub.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncGift("claimed")
	u.log.Info().
		Str("gift_id", giftID).
		Str("recipient_id", recipientUserID).
		Str("subscription_id", sub.ID).
		Msg("gift claimed")
	if u.sync != nil {
		if _, err := u.sync.DrainDue(ctx, 10); err != nil {
			u.log.Warn().Err(err).Msg("post-claim entitlement push failed; outbox will retry")
		}
	}
	return sub, nil
}

func (u *giftUC) Get(ctx context.Context, giftID string) (*model.Gift, error) {
	return u.gifts.FindByID(ctx, repository.NoTX, giftID)
}
