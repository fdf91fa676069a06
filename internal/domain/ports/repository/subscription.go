package repository

import (
	"context"
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

// SubscriptionRepository is the port for the single active/primary
// subscription per user.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)

	// FindExpiring returns active auto-renew subscriptions whose end date
	// falls within [now, now+window].
	FindExpiring(ctx context.Context, tx Tx, window time.Duration) ([]*model.Subscription, error)

	// FindExpired returns active subscriptions whose end date has passed.
	FindExpired(ctx context.Context, tx Tx, limit int) ([]*model.Subscription, error)

	Deactivate(ctx context.Context, tx Tx, id string) error
}
