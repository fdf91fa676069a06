package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

// SubscriptionUseCase exposes subscription reads and the expiry sweep.
type SubscriptionUseCase interface {
	GetActive(ctx context.Context, userID string) (*model.Subscription, error)
	SetAutoRenew(ctx context.Context, userID string, enabled bool) error

	// FinishExpired deactivates overdue subscriptions and enqueues a panel
	// disable for each, returning how many were closed.
	FinishExpired(ctx context.Context) (int, error)
}

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type subscriptionUC struct {
	subs   repository.SubscriptionRepository
	outbox repository.OutboxRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	outbox repository.OutboxRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, outbox: outbox, tm: tm, log: &l}
}

func (u *subscriptionUC) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	return u.subs.FindActiveByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) SetAutoRenew(ctx context.Context, userID string, enabled bool) error {
	return u.tm.WithUserTx(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		sub.AutoRenewEnabled = enabled
		sub.UpdatedAt = time.Now()
		return u.subs.Save(ctx, tx, sub)
	})
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	expired, err := u.subs.FindExpired(ctx, repository.NoTX, 100)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, sub := range expired {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		if err := u.finishOne(ctx, sub); err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to finish expired subscription")
			continue
		}
		closed++
		metrics.IncSubscriptionExpired()
	}
	return closed, nil
}

// finishOne deactivates the row and enqueues the panel disable in one
// transaction so a crash cannot leave the panel serving a closed subscription
// without a pending push.
func (u *subscriptionUC) finishOne(ctx context.Context, sub *model.Subscription) error {
	return u.tm.WithUserTx(ctx, sub.UserID, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.subs.FindActiveByUser(ctx, tx, sub.UserID)
		if err != nil {
			if err == domain.ErrNotFound {
				return nil // already closed
			}
			return err
		}
		if cur.ID != sub.ID || cur.EndDate.After(time.Now()) {
			return nil // renewed while we were sweeping
		}
		if err := u.subs.Deactivate(ctx, tx, cur.ID); err != nil {
			return err
		}

		now := time.Now()
		task := &model.SyncTask{
			ID:               newULID(),
			UserID:           cur.UserID,
			ProvisioningUUID: cur.ProvisioningUUID,
			Kind:             model.SyncTaskDisable,
			ExpireAt:         cur.EndDate,
			Status:           model.SyncTaskPending,
			NextAttemptAt:    now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return u.outbox.Enqueue(ctx, tx, task)
	})
}
