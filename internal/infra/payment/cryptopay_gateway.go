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
	"strconv"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
)

const cryptoPayBaseURL = "https://pay.crypt.bot/api"

var _ adapter.PaymentGateway = (*CryptoPayGateway)(nil)

// CryptoPayGateway implements PaymentGateway against the Crypto Pay API.
// Webhook signatures are HMAC-SHA256 over the raw body, keyed with the
// SHA-256 digest of the API token per the provider's scheme.
type CryptoPayGateway struct {
	token      string
	signingKey []byte
	baseURL    string
	client     *http.Client
}

func NewCryptoPayGateway(apiToken string) *CryptoPayGateway {
	key := sha256.Sum256([]byte(apiToken))
	return &CryptoPayGateway{
		token:      apiToken,
		signingKey: key[:],
		baseURL:    cryptoPayBaseURL,
		client:     &http.Client{},
	}
}

func (g *CryptoPayGateway) Name() string { return "cryptopay" }

// Crypto invoices cannot charge a wallet off-session.
func (g *CryptoPayGateway) SupportsRecurring() bool { return false }

type cryptoInvoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Fiat      string `json:"fiat"`
	PayURL    string `json:"pay_url"`
}

type cryptoAPIResponse struct {
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

func (g *CryptoPayGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string) (*adapter.CreatedPayment, error) {
	body := map[string]interface{}{
		"currency_type": "fiat",
		"fiat":          currency,
		"amount":        formatMinor(amount),
		"description":   description,
		"paid_btn_name": "callback",
		"paid_btn_url":  returnURL,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/createInvoice", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", g.token)

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	var resp cryptoAPIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("cryptopay: unmarshal response: %w", err)
	}
	if !resp.Ok {
		return nil, fmt.Errorf("cryptopay: error %d %s", resp.Error.Code, resp.Error.Name)
	}

	var inv cryptoInvoice
	if err := json.Unmarshal(resp.Result, &inv); err != nil {
		return nil, fmt.Errorf("cryptopay: unmarshal invoice: %w", err)
	}
	return &adapter.CreatedPayment{
		ExternalID: strconv.FormatInt(inv.InvoiceID, 10),
		PayURL:     inv.PayURL,
	}, nil
}

func (g *CryptoPayGateway) CreateRecurringCharge(ctx context.Context, methodID string, amount int64, currency, description string) (*adapter.CreatedPayment, error) {
	return nil, domain.ErrOperationFailed
}

type cryptoWebhookUpdate struct {
	UpdateType string        `json:"update_type"`
	Payload    cryptoInvoice `json:"payload"`
}

func (g *CryptoPayGateway) VerifyWebhook(body []byte, header http.Header) (*model.PaymentNotification, error) {
	sig, err := hex.DecodeString(header.Get("Crypto-Pay-Api-Signature"))
	if err != nil || len(sig) == 0 {
		return nil, domain.ErrSignatureVerification
	}
	mac := hmac.New(sha256.New, g.signingKey)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, domain.ErrSignatureVerification
	}

	var upd cryptoWebhookUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if upd.UpdateType != "invoice_paid" || upd.Payload.InvoiceID == 0 {
		return nil, domain.ErrInvalidArgument
	}

	amount, err := parseMinor(upd.Payload.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return &model.PaymentNotification{
		Provider:   g.Name(),
		ExternalID: strconv.FormatInt(upd.Payload.InvoiceID, 10),
		Status:     model.NotificationSucceeded,
		Amount:     amount,
		Currency:   upd.Payload.Fiat,
	}, nil
}
