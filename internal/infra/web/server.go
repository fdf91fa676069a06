package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

// Server exposes the webhook endpoints, a small authenticated billing API and
// the operational endpoints.
type Server struct {
	paymentUC usecase.PaymentUseCase
	pricingUC usecase.PricingUseCase
	ledgerUC  usecase.LedgerUseCase
	subUC     usecase.SubscriptionUseCase
	giftUC    usecase.GiftUseCase
	webhooks  *WebhookHandler
	apiKey    string
	log       *zerolog.Logger
	http      *http.Server
}

func NewServer(
	addr string,
	paymentUC usecase.PaymentUseCase,
	pricingUC usecase.PricingUseCase,
	ledgerUC usecase.LedgerUseCase,
	subUC usecase.SubscriptionUseCase,
	giftUC usecase.GiftUseCase,
	webhooks *WebhookHandler,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		paymentUC: paymentUC,
		pricingUC: pricingUC,
		ledgerUC:  ledgerUC,
		subUC:     subUC,
		giftUC:    giftUC,
		webhooks:  webhooks,
		apiKey:    apiKey,
		log:       &l,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/{provider}", s.webhooks.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/quotes", s.handleQuote)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/topup", s.handleTopUp)
		r.Post("/purchase-with-balance", s.handlePurchaseWithBalance)
		r.Post("/payments/{id}/refund", s.handleRefund)
		r.Post("/gifts", s.handleGiftPurchase)
		r.Post("/gifts/{id}/claim", s.handleGiftClaim)
		r.Get("/gifts/{id}", s.handleGift)
		r.Get("/users/{id}/balance", s.handleBalance)
		r.Get("/users/{id}/ledger", s.handleLedgerHistory)
		r.Get("/users/{id}/subscription", s.handleSubscription)
		r.Put("/users/{id}/auto-renew", s.handleAutoRenew)
	})
	return r
}

// authMiddleware provides simple Bearer token authentication for the billing API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("billing API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
