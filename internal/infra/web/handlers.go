package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTariffNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid argument"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "insufficient funds"})
	case errors.Is(err, domain.ErrPromoInvalid),
		errors.Is(err, domain.ErrPromoExpired),
		errors.Is(err, domain.ErrPromoExhausted),
		errors.Is(err, domain.ErrPromoAlreadyUsed),
		errors.Is(err, domain.ErrPromoNotApplicable):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, domain.ErrExternalService):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type quoteRequest struct {
	UserID    string `json:"user_id"`
	TariffID  string `json:"tariff_id"`
	PromoCode string `json:"promo_code"`
}

type quoteResponse struct {
	TariffID           string  `json:"tariff_id"`
	BasePrice          int64   `json:"base_price"`
	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	DiscountAmount     int64   `json:"discount_amount,omitempty"`
	PromoCode          *string `json:"promo_code,omitempty"`
	PromoDiscount      int64   `json:"promo_discount,omitempty"`
	FinalPrice         int64   `json:"final_price"`
	Currency           string  `json:"currency"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	q, err := s.pricingUC.Quote(r.Context(), req.UserID, req.TariffID, req.PromoCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		TariffID:           q.TariffID,
		BasePrice:          q.BasePrice,
		DiscountPercentage: q.DiscountPercentage,
		DiscountAmount:     q.DiscountAmount,
		PromoCode:          q.PromoCode,
		PromoDiscount:      q.PromoDiscount,
		FinalPrice:         q.FinalPrice,
		Currency:           q.Currency,
	})
}

type checkoutRequest struct {
	UserID    string `json:"user_id"`
	TariffID  string `json:"tariff_id"`
	PromoCode string `json:"promo_code"`
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url"`
}

type checkoutResponse struct {
	PaymentID string `json:"payment_id"`
	PayURL    string `json:"pay_url"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	p, payURL, err := s.paymentUC.Checkout(r.Context(), req.UserID, req.TariffID, req.PromoCode, req.Provider, req.ReturnURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		PaymentID: p.ID, PayURL: payURL, Amount: p.Amount, Currency: p.Currency,
	})
}

type topUpRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url"`
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	p, payURL, err := s.paymentUC.TopUp(r.Context(), req.UserID, req.Amount, req.Currency, req.Provider, req.ReturnURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		PaymentID: p.ID, PayURL: payURL, Amount: p.Amount, Currency: p.Currency,
	})
}

type balancePurchaseRequest struct {
	UserID    string `json:"user_id"`
	TariffID  string `json:"tariff_id"`
	PromoCode string `json:"promo_code"`
}

func (s *Server) handlePurchaseWithBalance(w http.ResponseWriter, r *http.Request) {
	var req balancePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	p, err := s.paymentUC.PurchaseWithBalance(r.Context(), req.UserID, req.TariffID, req.PromoCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		PaymentID: p.ID, Amount: p.Amount, Currency: p.Currency,
	})
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.paymentUC.Refund(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledgerUC.Balance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

type ledgerEntryResponse struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	OperationType string    `json:"operation_type"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := s.ledgerUC.History(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:            e.ID,
			Amount:        e.Amount,
			Currency:      e.Currency,
			OperationType: string(e.OperationType),
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type subscriptionResponse struct {
	ID               string    `json:"id"`
	TariffID         *string   `json:"tariff_id,omitempty"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	IsActive         bool      `json:"is_active"`
	AutoRenewEnabled bool      `json:"auto_renew_enabled"`
	Current          bool      `json:"current"`
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.GetActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:               sub.ID,
		TariffID:         sub.TariffID,
		StartDate:        sub.StartDate,
		EndDate:          sub.EndDate,
		IsActive:         sub.IsActive,
		AutoRenewEnabled: sub.AutoRenewEnabled,
		Current:          sub.Current(time.Now()),
	}
}

type giftPurchaseRequest struct {
	SenderID  string `json:"sender_id"`
	TariffID  string `json:"tariff_id"`
	PromoCode string `json:"promo_code"`
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url"`
	Message   string `json:"message"`
}

type giftResponse struct {
	GiftID    string     `json:"gift_id"`
	Status    string     `json:"status"`
	TariffID  string     `json:"tariff_id"`
	Message   string     `json:"message,omitempty"`
	PaymentID string     `json:"payment_id,omitempty"`
	PayURL    string     `json:"pay_url,omitempty"`
	Amount    int64      `json:"amount,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

func (s *Server) handleGiftPurchase(w http.ResponseWriter, r *http.Request) {
	var req giftPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	g, p, payURL, err := s.giftUC.Purchase(r.Context(), req.SenderID, req.TariffID, req.PromoCode, req.Provider, req.ReturnURL, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, giftResponse{
		GiftID:    g.ID,
		Status:    string(g.Status),
		TariffID:  g.TariffID,
		Message:   g.Message,
		PaymentID: p.ID,
		PayURL:    payURL,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
}

type giftClaimRequest struct {
	RecipientID string `json:"recipient_id"`
}

func (s *Server) handleGiftClaim(w http.ResponseWriter, r *http.Request) {
	var req giftClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	sub, err := s.giftUC.Claim(r.Context(), chi.URLParam(r, "id"), req.RecipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	g, err := s.giftUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, giftResponse{
		GiftID:    g.ID,
		Status:    string(g.Status),
		TariffID:  g.TariffID,
		Message:   g.Message,
		ClaimedAt: g.ClaimedAt,
	})
}

type autoRenewRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAutoRenew(w http.ResponseWriter, r *http.Request) {
	var req autoRenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.subUC.SetAutoRenew(r.Context(), chi.URLParam(r, "id"), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
