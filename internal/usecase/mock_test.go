//go:build !integration

package usecase_test

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// In-memory store
// =============================

// memStore backs every mock repository. The mock transaction manager
// snapshots it before running a callback and restores it on error, so
// rollback semantics hold in tests too.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	tariffs     map[string]*model.Tariff
	promos      map[string]*model.PromoCode
	activations map[string]map[string]bool // promoID -> userID
	payments    map[string]*model.Payment
	subs        map[string]*model.Subscription
	ledger      []*model.LedgerEntry
	discounts   []*model.UserDiscount
	methods     map[string]*model.PaymentMethod
	outbox      map[string]*model.SyncTask
	gifts       map[string]*model.Gift
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*model.User{},
		tariffs:     map[string]*model.Tariff{},
		promos:      map[string]*model.PromoCode{},
		activations: map[string]map[string]bool{},
		payments:    map[string]*model.Payment{},
		subs:        map[string]*model.Subscription{},
		methods:     map[string]*model.PaymentMethod{},
		outbox:      map[string]*model.SyncTask{},
		gifts:       map[string]*model.Gift{},
	}
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := newMemStore()
	for k, v := range s.users {
		u := *v
		cp.users[k] = &u
	}
	for k, v := range s.tariffs {
		t := *v
		cp.tariffs[k] = &t
	}
	for k, v := range s.promos {
		p := *v
		cp.promos[k] = &p
	}
	for k, v := range s.activations {
		m := map[string]bool{}
		for u := range v {
			m[u] = true
		}
		cp.activations[k] = m
	}
	for k, v := range s.payments {
		p := *v
		cp.payments[k] = &p
	}
	for k, v := range s.subs {
		sub := *v
		cp.subs[k] = &sub
	}
	for _, e := range s.ledger {
		le := *e
		cp.ledger = append(cp.ledger, &le)
	}
	for _, d := range s.discounts {
		dd := *d
		cp.discounts = append(cp.discounts, &dd)
	}
	for k, v := range s.methods {
		m := *v
		cp.methods[k] = &m
	}
	for k, v := range s.outbox {
		t := *v
		cp.outbox[k] = &t
	}
	for k, v := range s.gifts {
		g := *v
		cp.gifts[k] = &g
	}
	return cp
}

func (s *memStore) restore(from *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = from.users
	s.tariffs = from.tariffs
	s.promos = from.promos
	s.activations = from.activations
	s.payments = from.payments
	s.subs = from.subs
	s.ledger = from.ledger
	s.discounts = from.discounts
	s.methods = from.methods
	s.outbox = from.outbox
	s.gifts = from.gifts
}

// =============================
// Mock transaction manager
// =============================

type memTxManager struct {
	txMu  sync.Mutex
	store *memStore
}

var _ repository.TransactionManager = (*memTxManager)(nil)

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	// Transactions run one at a time, mirroring the row and advisory locks
	// that serialize the real ones in Postgres. Without this, concurrent
	// snapshot/restore pairs would clobber each other's committed writes.
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

func (m *memTxManager) WithUserTx(ctx context.Context, _ string, fn func(ctx context.Context, tx repository.Tx) error) error {
	return m.WithTx(ctx, pgx.TxOptions{}, fn)
}

// =============================
// Mock repositories
// =============================

type memUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) Save(_ context.Context, _ repository.Tx, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByTelegramID(_ context.Context, _ repository.Tx, tgID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.TelegramID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) SetProvisioningUUID(_ context.Context, _ repository.Tx, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.ProvisioningUUID = &id
	return nil
}

type memTariffRepo struct{ s *memStore }

var _ repository.TariffRepository = (*memTariffRepo)(nil)

func (r *memTariffRepo) Save(_ context.Context, _ repository.Tx, t *model.Tariff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.tariffs[t.ID] = &cp
	return nil
}

func (r *memTariffRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tariffs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTariffRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Tariff
	for _, t := range r.s.tariffs {
		if t.IsActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (r *memTariffRepo) FindDefault(_ context.Context, _ repository.Tx) (*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tariffs {
		if t.IsActive && t.IsDefault {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memPromoRepo struct{ s *memStore }

var _ repository.PromoCodeRepository = (*memPromoRepo)(nil)

func (r *memPromoRepo) Save(_ context.Context, _ repository.Tx, p *model.PromoCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.promos[p.ID] = &cp
	return nil
}

func (r *memPromoRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.PromoCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.promos {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPromoRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.PromoCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPromoRepo) HasActivation(_ context.Context, _ repository.Tx, promoID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.activations[promoID][userID], nil
}

func (r *memPromoRepo) Redeem(_ context.Context, _ repository.Tx, promoID, userID string, _ *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.promos[promoID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.MaxActivations != nil && p.UsedCount >= *p.MaxActivations {
		return domain.ErrPromoExhausted
	}
	if r.s.activations[promoID][userID] {
		return domain.ErrPromoAlreadyUsed
	}
	p.UsedCount++
	if r.s.activations[promoID] == nil {
		r.s.activations[promoID] = map[string]bool{}
	}
	r.s.activations[promoID][userID] = true
	return nil
}

type memPaymentRepo struct{ s *memStore }

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func (r *memPaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) FindByProviderExternalID(_ context.Context, _ repository.Tx, provider, externalID string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.Provider == provider && p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPaymentRepo) UpdateStatusIfPending(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *memPaymentRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memPaymentRepo) SetSubscriptionID(_ context.Context, _ repository.Tx, paymentID, subscriptionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.SubscriptionID = &subscriptionID
	return nil
}

func (r *memPaymentRepo) HasPendingRenewal(_ context.Context, _ repository.Tx, subscriptionID string, since time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID &&
			p.Status == model.PaymentStatusPending && !p.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPaymentRepo) FailStaleByExternalIDPrefix(_ context.Context, _ repository.Tx, prefix string, olderThan time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.payments {
		if p.Status == model.PaymentStatusPending && strings.HasPrefix(p.ExternalID, prefix) && p.CreatedAt.Before(olderThan) {
			p.Status = model.PaymentStatusFailed
			p.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

type memGiftRepo struct{ s *memStore }

var _ repository.GiftRepository = (*memGiftRepo)(nil)

func (r *memGiftRepo) Save(_ context.Context, _ repository.Tx, g *model.Gift) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *g
	r.s.gifts[g.ID] = &cp
	return nil
}

func (r *memGiftRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Gift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memGiftRepo) MarkPaidIfPending(_ context.Context, _ repository.Tx, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok || g.Status != model.GiftStatusPendingPayment {
		return false, nil
	}
	g.Status = model.GiftStatusPaid
	g.UpdatedAt = time.Now()
	return true, nil
}

func (r *memGiftRepo) ClaimIfPaid(_ context.Context, _ repository.Tx, id, recipientUserID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok || g.Status != model.GiftStatusPaid {
		return false, nil
	}
	now := time.Now()
	g.Status = model.GiftStatusClaimed
	g.RecipientUserID = &recipientUserID
	g.ClaimedAt = &now
	g.UpdatedAt = now
	return true, nil
}

func (r *memGiftRepo) Cancel(_ context.Context, _ repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.gifts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if g.Status == model.GiftStatusPendingPayment {
		g.Status = model.GiftStatusCanceled
		g.UpdatedAt = time.Now()
	}
	return nil
}

type memSubscriptionRepo struct{ s *memStore }

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func (r *memSubscriptionRepo) Save(_ context.Context, _ repository.Tx, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sub
	r.s.subs[sub.ID] = &cp
	return nil
}

func (r *memSubscriptionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubscriptionRepo) FindActiveByUser(_ context.Context, _ repository.Tx, userID string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Subscription
	for _, sub := range r.s.subs {
		if sub.UserID == userID && sub.IsActive {
			if best == nil || sub.EndDate.After(best.EndDate) {
				best = sub
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memSubscriptionRepo) FindExpiring(_ context.Context, _ repository.Tx, window time.Duration) ([]*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []*model.Subscription
	for _, sub := range r.s.subs {
		if sub.IsActive && sub.AutoRenewEnabled && sub.EndDate.After(now) && sub.EndDate.Before(now.Add(window)) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *memSubscriptionRepo) FindExpired(_ context.Context, _ repository.Tx, limit int) ([]*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []*model.Subscription
	for _, sub := range r.s.subs {
		if sub.IsActive && sub.EndDate.Before(now) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSubscriptionRepo) Deactivate(_ context.Context, _ repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.IsActive = false
	sub.UpdatedAt = time.Now()
	return nil
}

type memLedgerRepo struct{ s *memStore }

var _ repository.LedgerRepository = (*memLedgerRepo)(nil)

func (r *memLedgerRepo) AddEntry(_ context.Context, _ repository.Tx, entry *model.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[entry.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *entry
	r.s.ledger = append(r.s.ledger, &cp)
	u.Balance += entry.Amount
	return nil
}

func (r *memLedgerRepo) History(_ context.Context, _ repository.Tx, userID string, limit, offset int) ([]*model.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		if r.s.ledger[i].UserID == userID {
			cp := *r.s.ledger[i]
			out = append(out, &cp)
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLedgerRepo) SumByUser(_ context.Context, _ repository.Tx, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, e := range r.s.ledger {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

type memDiscountRepo struct{ s *memStore }

var _ repository.DiscountRepository = (*memDiscountRepo)(nil)

func (r *memDiscountRepo) Save(_ context.Context, _ repository.Tx, d *model.UserDiscount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	r.s.discounts = append(r.s.discounts, &cp)
	return nil
}

func (r *memDiscountRepo) ListActiveForUser(_ context.Context, _ repository.Tx, userID, tariffID string) ([]*model.UserDiscount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.UserDiscount
	for _, d := range r.s.discounts {
		if d.UserID == userID && d.IsActive && (d.TariffID == nil || *d.TariffID == tariffID) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPaymentMethodRepo struct{ s *memStore }

var _ repository.PaymentMethodRepository = (*memPaymentMethodRepo)(nil)

func (r *memPaymentMethodRepo) Save(_ context.Context, _ repository.Tx, m *model.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *m
	r.s.methods[m.ID] = &cp
	return nil
}

func (r *memPaymentMethodRepo) FindDefaultForUser(_ context.Context, _ repository.Tx, userID, provider string) (*model.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.methods {
		if m.UserID == userID && m.Provider == provider && m.IsDefault {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memOutboxRepo struct{ s *memStore }

var _ repository.OutboxRepository = (*memOutboxRepo)(nil)

func (r *memOutboxRepo) Enqueue(_ context.Context, _ repository.Tx, t *model.SyncTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.outbox[t.ID] = &cp
	return nil
}

func (r *memOutboxRepo) ListDue(_ context.Context, _ repository.Tx, now time.Time, limit int) ([]*model.SyncTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SyncTask
	for _, t := range r.s.outbox {
		if t.Status == model.SyncTaskPending && !t.NextAttemptAt.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOutboxRepo) CountPending(_ context.Context, _ repository.Tx) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.outbox {
		if t.Status == model.SyncTaskPending {
			n++
		}
	}
	return n, nil
}

func (r *memOutboxRepo) MarkSent(_ context.Context, _ repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.outbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = model.SyncTaskSent
	t.UpdatedAt = time.Now()
	return nil
}

func (r *memOutboxRepo) Reschedule(_ context.Context, _ repository.Tx, id string, nextAttempt time.Time, lastErr string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.outbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Attempts++
	t.NextAttemptAt = nextAttempt
	t.LastError = lastErr
	t.UpdatedAt = time.Now()
	return nil
}

// =============================
// Mock adapters
// =============================

type MockLocker struct {
	mu      sync.Mutex
	Locked  int
	Unlocks int

	LockUserFunc func(ctx context.Context, userID string, ttl time.Duration) (string, error)
}

var _ adapter.UserLocker = (*MockLocker)(nil)

func (m *MockLocker) LockUser(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, userID, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locked++
	return uuid.NewString(), nil
}

func (m *MockLocker) UnlockUser(context.Context, string, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unlocks++
	return nil
}

type MockGateway struct {
	NameVal      string
	Recurring    bool
	ExternalSeq  int
	mu           sync.Mutex
	ChargeCalls  int
	CreatedCalls int

	CreatePaymentFunc         func(ctx context.Context, amount int64, currency, description, returnURL string) (*adapter.CreatedPayment, error)
	CreateRecurringChargeFunc func(ctx context.Context, methodID string, amount int64, currency, description string) (*adapter.CreatedPayment, error)
	VerifyWebhookFunc         func(body []byte, header http.Header) (*model.PaymentNotification, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string            { return m.NameVal }
func (m *MockGateway) SupportsRecurring() bool { return m.Recurring }

func (m *MockGateway) CreatePayment(ctx context.Context, amount int64, currency, description, returnURL string) (*adapter.CreatedPayment, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, amount, currency, description, returnURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedCalls++
	m.ExternalSeq++
	return &adapter.CreatedPayment{
		ExternalID: m.NameVal + "-ext-" + strconv.Itoa(m.ExternalSeq),
		PayURL:     "https://pay.example/" + strconv.Itoa(m.ExternalSeq),
	}, nil
}

func (m *MockGateway) CreateRecurringCharge(ctx context.Context, methodID string, amount int64, currency, description string) (*adapter.CreatedPayment, error) {
	if m.CreateRecurringChargeFunc != nil {
		return m.CreateRecurringChargeFunc(ctx, methodID, amount, currency, description)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeCalls++
	m.ExternalSeq++
	return &adapter.CreatedPayment{ExternalID: m.NameVal + "-rec-" + strconv.Itoa(m.ExternalSeq)}, nil
}

func (m *MockGateway) VerifyWebhook(body []byte, header http.Header) (*model.PaymentNotification, error) {
	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(body, header)
	}
	return nil, domain.ErrSignatureVerification
}

type MockPanel struct {
	mu            sync.Mutex
	IdentityCalls int
	UpdateCalls   int
	Entitlements  map[string]adapter.Entitlement

	CreateOrGetIdentityFunc func(ctx context.Context, userKey string, telegramID int64) (string, error)
	UpdateEntitlementFunc   func(ctx context.Context, uuid string, e adapter.Entitlement) error
}

var _ adapter.ProvisioningClient = (*MockPanel)(nil)

func (m *MockPanel) CreateOrGetIdentity(ctx context.Context, userKey string, telegramID int64) (string, error) {
	if m.CreateOrGetIdentityFunc != nil {
		return m.CreateOrGetIdentityFunc(ctx, userKey, telegramID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IdentityCalls++
	return "panel-" + userKey, nil
}

func (m *MockPanel) UpdateEntitlement(ctx context.Context, uuid string, e adapter.Entitlement) error {
	if m.UpdateEntitlementFunc != nil {
		return m.UpdateEntitlementFunc(ctx, uuid, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.Entitlements == nil {
		m.Entitlements = map[string]adapter.Entitlement{}
	}
	m.Entitlements[uuid] = e
	return nil
}

func (m *MockPanel) GetStatus(context.Context, string) (*adapter.IdentityStatus, error) {
	return nil, domain.ErrNotFound
}

// =============================
// Test environment
// =============================

type env struct {
	store    *memStore
	users    *memUserRepo
	tariffs  *memTariffRepo
	promos   *memPromoRepo
	payments *memPaymentRepo
	subs     *memSubscriptionRepo
	ledger   *memLedgerRepo
	methods  *memPaymentMethodRepo
	outbox   *memOutboxRepo
	gifts    *memGiftRepo
	tm       *memTxManager
	locker   *MockLocker
	gateway  *MockGateway
	panel    *MockPanel
	gateways map[string]adapter.PaymentGateway

	pricingUC    usecase.PricingUseCase
	ledgerUC     usecase.LedgerUseCase
	activationUC usecase.ActivationUseCase
	syncUC       usecase.SyncUseCase
	paymentUC    usecase.PaymentUseCase
	subUC        usecase.SubscriptionUseCase
	renewalUC    usecase.RenewalUseCase
	giftUC       usecase.GiftUseCase
}

func newEnv() *env {
	s := newMemStore()
	e := &env{
		store:    s,
		users:    &memUserRepo{s: s},
		tariffs:  &memTariffRepo{s: s},
		promos:   &memPromoRepo{s: s},
		payments: &memPaymentRepo{s: s},
		subs:     &memSubscriptionRepo{s: s},
		ledger:   &memLedgerRepo{s: s},
		methods:  &memPaymentMethodRepo{s: s},
		outbox:   &memOutboxRepo{s: s},
		gifts:    &memGiftRepo{s: s},
		tm:       &memTxManager{store: s},
		locker:   &MockLocker{},
		gateway:  &MockGateway{NameVal: "yookassa", Recurring: true},
		panel:    &MockPanel{},
	}
	e.gateways = map[string]adapter.PaymentGateway{e.gateway.NameVal: e.gateway}
	discounts := &memDiscountRepo{s: s}

	log := nopLogger()
	e.pricingUC = usecase.NewPricingUseCase(e.tariffs, e.promos, discounts, log)
	e.ledgerUC = usecase.NewLedgerUseCase(e.ledger, e.users, e.tm, e.locker, log)
	e.syncUC = usecase.NewSyncUseCase(e.outbox, e.panel, log)
	e.activationUC = usecase.NewActivationUseCase(
		e.subs, e.tariffs, e.users, e.methods, e.outbox, e.panel, e.gateways,
		true, usecase.DefaultLimits{}, log,
	)
	e.paymentUC = usecase.NewPaymentUseCase(
		e.payments, e.users, e.promos, e.methods, e.gifts, e.pricingUC, e.ledgerUC, e.activationUC, e.syncUC,
		e.tm, e.locker, e.gateways, log,
	)
	e.subUC = usecase.NewSubscriptionUseCase(e.subs, e.outbox, e.tm, log)
	e.renewalUC = usecase.NewRenewalUseCase(e.subs, e.tariffs, e.payments, e.methods, e.pricingUC, e.gateways, log)
	e.giftUC = usecase.NewGiftUseCase(
		e.gifts, e.payments, e.users, e.promos, e.pricingUC, e.activationUC, e.syncUC,
		e.tm, e.locker, e.gateways, log,
	)
	return e
}

func (e *env) addUser(id string, balance int64) *model.User {
	u := &model.User{
		ID:           id,
		TelegramID:   int64(len(e.store.users) + 1000),
		Username:     id,
		Balance:      balance,
		RegisteredAt: time.Now(),
		LastActiveAt: time.Now(),
	}
	e.store.users[id] = u
	return u
}

func (e *env) addTariff(id string, price int64, days int) *model.Tariff {
	t := &model.Tariff{
		ID:           id,
		Name:         id,
		Price:        price,
		Currency:     "RUB",
		DurationDays: days,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	e.store.tariffs[id] = t
	return t
}

func (e *env) addDiscount(userID string, pct float64, tariffID *string) {
	e.store.discounts = append(e.store.discounts, &model.UserDiscount{
		ID:                 uuid.NewString(),
		UserID:             userID,
		DiscountPercentage: pct,
		TariffID:           tariffID,
		IsActive:           true,
		CreatedAt:          time.Now(),
	})
}

func (e *env) addPromo(code string, typ model.PromoType, value float64) *model.PromoCode {
	p := &model.PromoCode{
		ID:        "promo-" + code,
		Code:      code,
		Type:      typ,
		Value:     value,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	e.store.promos[p.ID] = p
	return p
}
