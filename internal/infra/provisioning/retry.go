package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
)

var _ adapter.ProvisioningClient = (*RetryingClient)(nil)

// RetryingClient wraps a ProvisioningClient with bounded retries on transient
// failures. Not-found and context errors pass through untouched.
type RetryingClient struct {
	inner    adapter.ProvisioningClient
	attempts int
	base     time.Duration
}

func NewRetryingClient(inner adapter.ProvisioningClient) *RetryingClient {
	return &RetryingClient{inner: inner, attempts: 3, base: 500 * time.Millisecond}
}

func (c *RetryingClient) CreateOrGetIdentity(ctx context.Context, userKey string, telegramID int64) (string, error) {
	var uuid string
	err := c.retry(ctx, func() error {
		var err error
		uuid, err = c.inner.CreateOrGetIdentity(ctx, userKey, telegramID)
		return err
	})
	return uuid, err
}

func (c *RetryingClient) UpdateEntitlement(ctx context.Context, uuid string, e adapter.Entitlement) error {
	return c.retry(ctx, func() error {
		return c.inner.UpdateEntitlement(ctx, uuid, e)
	})
}

func (c *RetryingClient) GetStatus(ctx context.Context, uuid string) (*adapter.IdentityStatus, error) {
	var st *adapter.IdentityStatus
	err := c.retry(ctx, func() error {
		var err error
		st, err = c.inner.GetStatus(ctx, uuid)
		return err
	})
	return st, err
}

func (c *RetryingClient) retry(ctx context.Context, fn func() error) error {
	delay := c.base
	var err error
	for i := 0; i < c.attempts; i++ {
		err = fn()
		if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
