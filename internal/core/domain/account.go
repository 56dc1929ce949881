package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account lookup fields accepted by the account store.
const (
	FieldAccountID   = "accountId"
	FieldDisplayName = "displayName"
)

// DefaultBankTag is stamped on every ledger entry when no tag is configured.
const DefaultBankTag = "YourBank"

// TransactionCategory is the only category the transfer flow writes.
const TransactionCategory = "Transfer"

// TransactionType distinguishes the two sides of a transfer.
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "transfer" // sender side
	TransactionTypeReceive  TransactionType = "receive"  // recipient side
)

// Account is a customer ledger record: balance plus an append-only log.
type Account struct {
	AccountID    string          `json:"account_id"`
	DisplayName  string          `json:"display_name"`
	HolderName   string          `json:"holder_name"`
	PinHash      string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	Version      int64           `json:"version"`
	Transactions []Transaction   `json:"transactions"`
}

// FindTransaction returns the log entry with the given transfer ID, if any.
func (a *Account) FindTransaction(transferID string) (Transaction, bool) {
	for _, t := range a.Transactions {
		if t.TransactionID == transferID {
			return t, true
		}
	}
	return Transaction{}, false
}

// CanCover reports whether the balance covers amount.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Transaction is one immutable side of a transfer.
type Transaction struct {
	TransactionID    string          `json:"transaction_id"`
	Type             TransactionType `json:"type"`
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           decimal.Decimal `json:"amount"`
	Timestamp        time.Time       `json:"timestamp"`
	Category         string          `json:"category"`
	BankTag          string          `json:"bank_tag"`
}

// AccountUpdate is the partial-field write applied by UpdateFields:
// the new absolute balance and one entry to append.
type AccountUpdate struct {
	Balance decimal.Decimal
	Append  Transaction
}
