package domain

import "github.com/shopspring/decimal"

// CurrencyScale is the number of decimal places a ledger amount may carry.
const CurrencyScale int32 = 2

// ValidAmount reports whether amount is positive and fits CurrencyScale.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(CurrencyScale))
}

// TransferResult describes a committed (or replayed) transfer.
type TransferResult struct {
	TransferID       string          `json:"transfer_id"`
	SenderID         string          `json:"sender_id"`
	RecipientID      string          `json:"recipient_id"`
	Amount           decimal.Decimal `json:"amount"`
	SenderBalance    decimal.Decimal `json:"sender_balance"`
	RecipientBalance decimal.Decimal `json:"recipient_balance"`
	SenderEntry      Transaction     `json:"sender_entry"`
	RecipientEntry   Transaction     `json:"recipient_entry"`
	Replayed         bool            `json:"replayed"`
}
