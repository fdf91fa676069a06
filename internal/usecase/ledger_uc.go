package usecase

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

const userLockTTL = 15 * time.Second

// LedgerUseCase owns every balance mutation. Each operation writes exactly
// one ledger row and moves the cached balance inside one transaction, behind
// the owner's lock.
type LedgerUseCase interface {
	Deposit(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
	Charge(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
	Refund(ctx context.Context, userID string, amount int64, currency, reason string) (*model.LedgerEntry, error)
	AddBonus(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
	// RecordPayment spends balance on a purchase (operation_type=payment).
	RecordPayment(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)

	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit, offset int) ([]*model.LedgerEntry, error)

	// Tx variants for callers that already hold the user lock and a
	// transaction (payment fulfillment).
	DepositTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
	RefundTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
	ChargeTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error)
}

var _ LedgerUseCase = (*ledgerUC)(nil)

type ledgerUC struct {
	ledger repository.LedgerRepository
	users  repository.UserRepository
	tm     repository.TransactionManager
	locker adapter.UserLocker
	log    *zerolog.Logger
}

func NewLedgerUseCase(
	ledger repository.LedgerRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	locker adapter.UserLocker,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{ledger: ledger, users: users, tm: tm, locker: locker, log: &l}
}

// newULID produces sortable ids for ledger entries and outbox tasks.
func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func (u *ledgerUC) Deposit(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	return u.apply(ctx, userID, amount, currency, model.OperationDeposit, description, false)
}

func (u *ledgerUC) Charge(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	return u.apply(ctx, userID, -amount, currency, model.OperationWithdrawal, description, true)
}

func (u *ledgerUC) Refund(ctx context.Context, userID string, amount int64, currency, reason string) (*model.LedgerEntry, error) {
	return u.apply(ctx, userID, amount, currency, model.OperationRefund, reason, false)
}

func (u *ledgerUC) AddBonus(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	return u.apply(ctx, userID, amount, currency, model.OperationBonus, description, false)
}

func (u *ledgerUC) RecordPayment(ctx context.Context, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	return u.apply(ctx, userID, -amount, currency, model.OperationPayment, description, true)
}

// apply serializes on the user lock, then runs the insert+balance update in
// one transaction under the advisory xact lock. checkFunds guards debits:
// the balance is re-read FOR UPDATE inside the transaction, so interleaved
// charges cannot both pass the check.
func (u *ledgerUC) apply(ctx context.Context, userID string, signed int64, currency string, op model.OperationType, description string, checkFunds bool) (*model.LedgerEntry, error) {
	if signed == 0 || userID == "" {
		return nil, domain.ErrInvalidArgument
	}

	token, err := u.locker.LockUser(ctx, userID, userLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = u.locker.UnlockUser(ctx, userID, token) }()

	var entry *model.LedgerEntry
	err = u.tm.WithUserTx(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		entry, err = u.applyTx(ctx, tx, userID, signed, currency, op, description, checkFunds)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLedgerOp(string(op))
	u.log.Info().
		Str("user_id", userID).
		Str("op", string(op)).
		Int64("amount", signed).
		Msg("ledger entry recorded")
	return entry, nil
}

func (u *ledgerUC) applyTx(ctx context.Context, tx repository.Tx, userID string, signed int64, currency string, op model.OperationType, description string, checkFunds bool) (*model.LedgerEntry, error) {
	user, err := u.users.FindByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if checkFunds && user.Balance+signed < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	entry := &model.LedgerEntry{
		ID:            newULID(),
		UserID:        userID,
		Amount:        signed,
		Currency:      currency,
		OperationType: op,
		Description:   description,
		CreatedAt:     time.Now(),
	}
	if err := u.ledger.AddEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (u *ledgerUC) DepositTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.applyTx(ctx, tx, userID, amount, currency, model.OperationDeposit, description, false)
}

func (u *ledgerUC) RefundTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.applyTx(ctx, tx, userID, amount, currency, model.OperationRefund, description, false)
}

func (u *ledgerUC) ChargeTx(ctx context.Context, tx repository.Tx, userID string, amount int64, currency, description string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.applyTx(ctx, tx, userID, -amount, currency, model.OperationPayment, description, true)
}

func (u *ledgerUC) Balance(ctx context.Context, userID string) (int64, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

func (u *ledgerUC) History(ctx context.Context, userID string, limit, offset int) ([]*model.LedgerEntry, error) {
	return u.ledger.History(ctx, repository.NoTX, userID, limit, offset)
}
