package web

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler authenticates provider callbacks and feeds them to
// reconciliation. Responses carry no internal detail: providers only need to
// know whether to redeliver.
type WebhookHandler struct {
	paymentUC usecase.PaymentUseCase
	gateways  map[string]adapter.PaymentGateway
	log       *zerolog.Logger
}

func NewWebhookHandler(paymentUC usecase.PaymentUseCase, gateways map[string]adapter.PaymentGateway, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "WebhookHandler").Logger()
	return &WebhookHandler{paymentUC: paymentUC, gateways: gateways, log: &l}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	start := time.Now()
	defer func() {
		metrics.ObserveWebhookDuration(provider, time.Since(start).Seconds())
	}()

	gw, ok := h.gateways[provider]
	if !ok {
		metrics.IncWebhook(provider, "bad_payload")
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhook(provider, "bad_payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	n, err := gw.VerifyWebhook(body, r.Header)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureVerification) {
			metrics.IncWebhook(provider, "bad_signature")
			h.log.Warn().Str("provider", provider).Msg("webhook signature verification failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		metrics.IncWebhook(provider, "bad_payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := h.paymentUC.HandleNotification(r.Context(), n); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Acknowledged so the provider stops redelivering; the
			// reconciliation-failure metric already fired.
			w.WriteHeader(http.StatusOK)
			return
		default:
			metrics.IncWebhook(provider, "error")
			h.log.Error().Err(err).
				Str("provider", provider).
				Str("external_id", n.ExternalID).
				Msg("webhook processing failed")
			// 5xx asks the provider to retry; idempotency makes that safe.
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	metrics.IncWebhook(provider, "ok")
	w.WriteHeader(http.StatusOK)
}
