package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
)

var _ adapter.UserLocker = (*UserLocker)(nil)

// UserLocker serializes financial operations per user across process
// instances. Tokens guard against releasing a lock that expired and was
// re-acquired by another holder.
type UserLocker struct {
	cli *redis.Client
}

func NewUserLocker(c *Client) *UserLocker {
	return &UserLocker{cli: c.cli}
}

func lockKey(userID string) string { return "lock:user:" + userID }

func (l *UserLocker) LockUser(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		ok, err := l.cli.SetNX(ctx, lockKey(userID), token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", domain.ErrLockNotAcquired
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *UserLocker) UnlockUser(ctx context.Context, userID, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{lockKey(userID)}, token).Result()
	return err
}
