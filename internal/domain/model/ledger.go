package model

import "time"

type OperationType string

const (
	OperationDeposit    OperationType = "deposit"
	OperationWithdrawal OperationType = "withdrawal"
	OperationPayment    OperationType = "payment" // purchase paid from balance
	OperationRefund     OperationType = "refund"
	OperationBonus      OperationType = "bonus"
)

// LedgerEntry is one immutable row of the append-only balance ledger.
// The cached User.Balance must always equal the sum of a user's entries;
// the repository enforces this by writing both in one transaction.
type LedgerEntry struct {
	ID            string // ULID, sortable by creation
	UserID        string
	Amount        int64 // minor units, signed: debits are negative
	Currency      string
	OperationType OperationType
	Description   string
	CreatedAt     time.Time
}
