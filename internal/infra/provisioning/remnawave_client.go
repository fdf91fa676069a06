package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

var _ adapter.ProvisioningClient = (*RemnawaveClient)(nil)

// RemnawaveClient talks to the Remnawave panel API. Entitlement updates are
// absolute state, so any call is safe to repeat.
type RemnawaveClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zerolog.Logger
}

func NewRemnawaveClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) *RemnawaveClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "RemnawaveClient").Logger()
	return &RemnawaveClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     &l,
	}
}

type panelUser struct {
	UUID              string `json:"uuid"`
	Username          string `json:"username"`
	Status            string `json:"status"`
	ExpireAt          string `json:"expireAt"`
	TrafficLimitBytes *int64 `json:"trafficLimitBytes,omitempty"`
	HwidDeviceLimit   *int   `json:"hwidDeviceLimit,omitempty"`
	TelegramID        int64  `json:"telegramId,omitempty"`
}

type panelResponse struct {
	Response panelUser `json:"response"`
}

func (c *RemnawaveClient) CreateOrGetIdentity(ctx context.Context, userKey string, telegramID int64) (string, error) {
	// Lookup first: the create endpoint rejects duplicate usernames.
	if u, err := c.getByUsername(ctx, userKey); err == nil && u.UUID != "" {
		return u.UUID, nil
	}

	body := panelUser{
		Username:   userKey,
		Status:     "ACTIVE",
		ExpireAt:   time.Now().Format(time.RFC3339),
		TelegramID: telegramID,
	}
	var resp panelResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", body, &resp); err != nil {
		return "", err
	}
	if resp.Response.UUID == "" {
		return "", fmt.Errorf("%w: panel returned empty uuid", domain.ErrExternalService)
	}
	return resp.Response.UUID, nil
}

func (c *RemnawaveClient) UpdateEntitlement(ctx context.Context, uuid string, e adapter.Entitlement) error {
	status := "ACTIVE"
	if !e.Enabled {
		status = "DISABLED"
	}
	body := panelUser{
		UUID:              uuid,
		Status:            status,
		ExpireAt:          e.ExpireAt.Format(time.RFC3339),
		TrafficLimitBytes: e.TrafficLimitBytes,
		HwidDeviceLimit:   e.DeviceLimit,
	}
	return c.do(ctx, http.MethodPatch, "/api/users", body, nil)
}

func (c *RemnawaveClient) GetStatus(ctx context.Context, uuid string) (*adapter.IdentityStatus, error) {
	var resp panelResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uuid), nil, &resp); err != nil {
		return nil, err
	}
	expireAt, _ := time.Parse(time.RFC3339, resp.Response.ExpireAt)
	return &adapter.IdentityStatus{
		UUID:     resp.Response.UUID,
		Status:   resp.Response.Status,
		ExpireAt: expireAt,
	}, nil
}

func (c *RemnawaveClient) getByUsername(ctx context.Context, username string) (*panelUser, error) {
	var resp panelResponse
	err := c.do(ctx, http.MethodGet, "/api/users/by-username/"+url.PathEscape(username), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Response, nil
}

func (c *RemnawaveClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, body, out)
	metrics.ObservePanelRequest(method+" "+path, time.Since(start).Seconds(), err == nil)
	return err
}

func (c *RemnawaveClient) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonData)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: panel status %d: %s", domain.ErrExternalService, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
		}
	}
	return nil
}
