package adapter

import (
	"context"
	"time"
)

// UserLocker serializes all financial mutations for a single user. The redis
// implementation gives cross-process exclusion; in-process fallbacks exist
// for tests only. Different users never block each other.
type UserLocker interface {
	// LockUser blocks (bounded retries) until the user's lock is held,
	// returning a token required to unlock. domain.ErrLockNotAcquired after
	// the retry budget.
	LockUser(ctx context.Context, userID string, ttl time.Duration) (token string, err error)

	UnlockUser(ctx context.Context, userID, token string) error
}
