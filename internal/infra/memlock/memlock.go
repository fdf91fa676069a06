// Package memlock provides an in-process UserLocker for single-instance
// deployments and tests. Cross-process coordination still comes from the
// per-user advisory xact lock; this only orders lock acquisition locally.
package memlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
)

var _ adapter.UserLocker = (*Locker)(nil)

type holder struct {
	token    string
	deadline time.Time
}

type Locker struct {
	mu    sync.Mutex
	locks map[string]holder
}

func New() *Locker {
	return &Locker{locks: make(map[string]holder)}
}

func (l *Locker) LockUser(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		if l.tryAcquire(userID, token, ttl) {
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

func (l *Locker) tryAcquire(userID, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.locks[userID]; ok && time.Now().Before(h.deadline) {
		return false
	}
	l.locks[userID] = holder{token: token, deadline: time.Now().Add(ttl)}
	return true
}

func (l *Locker) UnlockUser(ctx context.Context, userID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.locks[userID]; ok && h.token == token {
		delete(l.locks, userID)
	}
	return nil
}
