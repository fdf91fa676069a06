//go:build !integration

package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

func signHMAC(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func yooHeader(secret string, body []byte) http.Header {
	h := http.Header{}
	h.Set("Webhook-Signature", signHMAC([]byte(secret), body))
	return h
}

func TestYooKassaVerifyWebhookSucceeded(t *testing.T) {
	g := NewYooKassaGateway("shop", "sk", "whsec")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","amount":{"value":"1000.00","currency":"RUB"}}}`)

	n, err := g.VerifyWebhook(body, yooHeader("whsec", body))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if n.Provider != "yookassa" || n.ExternalID != "pay-1" {
		t.Errorf("provider/external = %s/%s", n.Provider, n.ExternalID)
	}
	if n.Status != model.NotificationSucceeded {
		t.Errorf("status = %s, want succeeded", n.Status)
	}
	if n.Amount != 100000 || n.Currency != "RUB" {
		t.Errorf("amount = %d %s, want 100000 RUB", n.Amount, n.Currency)
	}
}

func TestYooKassaVerifyWebhookCapturesSavedMethod(t *testing.T) {
	g := NewYooKassaGateway("shop", "sk", "whsec")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","amount":{"value":"1000.00","currency":"RUB"},"payment_method":{"id":"pm-7","saved":true,"card":{"last4":"4444","card_type":"MasterCard"}}}}`)

	n, err := g.VerifyWebhook(body, yooHeader("whsec", body))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if n.Method == nil {
		t.Fatalf("saved method not captured from the webhook")
	}
	if n.Method.ProviderMethodID != "pm-7" {
		t.Errorf("method id = %q, want pm-7", n.Method.ProviderMethodID)
	}
	if n.Method.CardLast4 != "4444" || n.Method.CardNetwork != "MasterCard" {
		t.Errorf("card = %s/%s, want 4444/MasterCard", n.Method.CardLast4, n.Method.CardNetwork)
	}

	// saved:false means the payer declined to keep the instrument on file.
	body = []byte(`{"event":"payment.succeeded","object":{"id":"pay-2","status":"succeeded","amount":{"value":"1000.00","currency":"RUB"},"payment_method":{"id":"pm-8","saved":false}}}`)
	n, err = g.VerifyWebhook(body, yooHeader("whsec", body))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if n.Method != nil {
		t.Errorf("method = %+v, want nil for an unsaved instrument", n.Method)
	}
}

func TestYooKassaVerifyWebhookCanceled(t *testing.T) {
	g := NewYooKassaGateway("shop", "sk", "whsec")
	body := []byte(`{"event":"payment.canceled","object":{"id":"pay-1","status":"canceled","amount":{"value":"1000.00","currency":"RUB"}}}`)

	n, err := g.VerifyWebhook(body, yooHeader("whsec", body))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if n.Status != model.NotificationFailed {
		t.Errorf("status = %s, want failed", n.Status)
	}
}

func TestYooKassaVerifyWebhookRejectsBadSignature(t *testing.T) {
	g := NewYooKassaGateway("shop", "sk", "whsec")
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"1000.00","currency":"RUB"}}}`)

	cases := []struct {
		name   string
		header http.Header
	}{
		{"missing header", http.Header{}},
		{"wrong secret", yooHeader("other", body)},
		{"not hex", func() http.Header {
			h := http.Header{}
			h.Set("Webhook-Signature", "zzzz")
			return h
		}()},
		{"tampered body", func() http.Header {
			tampered := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"9999.00","currency":"RUB"}}}`)
			return yooHeader("whsec", tampered)
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := g.VerifyWebhook(body, tc.header); !errors.Is(err, domain.ErrSignatureVerification) {
				t.Errorf("err = %v, want ErrSignatureVerification", err)
			}
		})
	}
}

func TestYooKassaVerifyWebhookRejectsBadPayload(t *testing.T) {
	g := NewYooKassaGateway("shop", "sk", "whsec")

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"event":`},
		{"missing object id", `{"event":"payment.succeeded","object":{"amount":{"value":"1.00","currency":"RUB"}}}`},
		{"unknown event", `{"event":"refund.succeeded","object":{"id":"pay-1","amount":{"value":"1.00","currency":"RUB"}}}`},
		{"bad amount", `{"event":"payment.succeeded","object":{"id":"pay-1","amount":{"value":"1.001","currency":"RUB"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(tc.body)
			if _, err := g.VerifyWebhook(body, yooHeader("whsec", body)); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestYooKassaCreatePayment(t *testing.T) {
	var got map[string]interface{}
	var auth, idemKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		idemKey = r.Header.Get("Idempotence-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           "pay-42",
			"status":       "pending",
			"confirmation": map[string]string{"confirmation_url": "https://pay.example/42"},
		})
	}))
	defer srv.Close()

	g := NewYooKassaGateway("shop", "sk", "whsec")
	g.baseURL = srv.URL

	created, err := g.CreatePayment(context.Background(), 100000, "RUB", "1 month", "https://t.me/back")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if created.ExternalID != "pay-42" || created.PayURL != "https://pay.example/42" {
		t.Errorf("created = %+v", created)
	}

	if auth == "" {
		t.Errorf("basic auth header missing")
	}
	if idemKey == "" {
		t.Errorf("idempotence key missing")
	}
	amount := got["amount"].(map[string]interface{})
	if amount["value"] != "1000.00" || amount["currency"] != "RUB" {
		t.Errorf("amount = %v", amount)
	}
	if got["save_payment_method"] != true {
		t.Errorf("save_payment_method not requested")
	}
}

func TestYooKassaCreatePaymentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","code":"invalid_request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewYooKassaGateway("shop", "sk", "whsec")
	g.baseURL = srv.URL

	if _, err := g.CreatePayment(context.Background(), 100000, "RUB", "d", "u"); err == nil {
		t.Fatalf("want error on 400 response")
	}
}

func TestYooKassaRecurringChargeUsesSavedMethod(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "pay-43", "status": "pending"})
	}))
	defer srv.Close()

	g := NewYooKassaGateway("shop", "sk", "whsec")
	g.baseURL = srv.URL

	created, err := g.CreateRecurringCharge(context.Background(), "pm-9", 80000, "RUB", "renewal")
	if err != nil {
		t.Fatalf("CreateRecurringCharge: %v", err)
	}
	if created.ExternalID != "pay-43" {
		t.Errorf("external id = %q", created.ExternalID)
	}
	if got["payment_method_id"] != "pm-9" {
		t.Errorf("payment_method_id = %v, want pm-9", got["payment_method_id"])
	}
}
