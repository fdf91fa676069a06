package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

var _ adapter.PaymentGateway = (*YooKassaGateway)(nil)

// YooKassaGateway implements PaymentGateway against the YooKassa v3 API.
// It supports saved payment methods and off-session recurring charges.
type YooKassaGateway struct {
	shopID        string
	secretKey     string
	webhookSecret []byte
	baseURL       string
	client        *http.Client
}

func NewYooKassaGateway(shopID, secretKey, webhookSecret string) *YooKassaGateway {
	return &YooKassaGateway{
		shopID:        shopID,
		secretKey:     secretKey,
		webhookSecret: []byte(webhookSecret),
		baseURL:       yookassaBaseURL,
		client:        &http.Client{},
	}
}

func (g *YooKassaGateway) Name() string { return "yookassa" }

func (g *YooKassaGateway) SupportsRecurring() bool { return true }

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooPaymentResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Amount       yooAmount `json:"amount"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (g *YooKassaGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string) (*adapter.CreatedPayment, error) {
	body := map[string]interface{}{
		"amount":      yooAmount{Value: formatMinor(amount), Currency: currency},
		"capture":     true,
		"description": description,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"save_payment_method": true,
	}
	resp, err := g.post(ctx, "/payments", body)
	if err != nil {
		return nil, err
	}
	return &adapter.CreatedPayment{
		ExternalID: resp.ID,
		PayURL:     resp.Confirmation.ConfirmationURL,
	}, nil
}

func (g *YooKassaGateway) CreateRecurringCharge(ctx context.Context, methodID string, amount int64, currency, description string) (*adapter.CreatedPayment, error) {
	body := map[string]interface{}{
		"amount":            yooAmount{Value: formatMinor(amount), Currency: currency},
		"capture":           true,
		"description":       description,
		"payment_method_id": methodID,
	}
	resp, err := g.post(ctx, "/payments", body)
	if err != nil {
		return nil, err
	}
	return &adapter.CreatedPayment{ExternalID: resp.ID}, nil
}

func (g *YooKassaGateway) post(ctx context.Context, path string, body interface{}) (*yooPaymentResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	// The API deduplicates creates on this key across network retries.
	req.Header.Set("Idempotence-Key", uuid.NewString())

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("yookassa: status %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp yooPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("yookassa: unmarshal response: %w", err)
	}
	return &resp, nil
}

type yooWebhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID            string    `json:"id"`
		Status        string    `json:"status"`
		Amount        yooAmount `json:"amount"`
		PaymentMethod struct {
			ID    string `json:"id"`
			Saved bool   `json:"saved"`
			Card  struct {
				Last4    string `json:"last4"`
				CardType string `json:"card_type"`
			} `json:"card"`
		} `json:"payment_method"`
	} `json:"object"`
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw body against
// the shared webhook secret, then normalizes the event.
func (g *YooKassaGateway) VerifyWebhook(body []byte, header http.Header) (*model.PaymentNotification, error) {
	sig, err := hex.DecodeString(header.Get("Webhook-Signature"))
	if err != nil || len(sig) == 0 {
		return nil, domain.ErrSignatureVerification
	}
	mac := hmac.New(sha256.New, g.webhookSecret)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, domain.ErrSignatureVerification
	}

	var ev yooWebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if ev.Object.ID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var status model.NotificationStatus
	switch ev.Event {
	case "payment.succeeded":
		status = model.NotificationSucceeded
	case "payment.canceled":
		status = model.NotificationFailed
	default:
		return nil, domain.ErrInvalidArgument
	}

	amount, err := parseMinor(ev.Object.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	// CreatePayment requests save_payment_method; the capture webhook is the
	// only place the saved instrument id comes back.
	var method *model.SavedPaymentMethod
	if pm := ev.Object.PaymentMethod; pm.Saved && pm.ID != "" {
		method = &model.SavedPaymentMethod{
			ProviderMethodID: pm.ID,
			CardLast4:        pm.Card.Last4,
			CardNetwork:      pm.Card.CardType,
		}
	}

	return &model.PaymentNotification{
		Provider:   g.Name(),
		ExternalID: ev.Object.ID,
		Status:     status,
		Amount:     amount,
		Currency:   ev.Object.Amount.Currency,
		Method:     method,
	}, nil
}
