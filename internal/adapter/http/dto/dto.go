package dto

import (
	"time"

	"secure-transfer-gateway/internal/core/domain"
)

// StartSessionRequest is the request body for opening a transfer session.
type StartSessionRequest struct {
	RecipientID string `json:"recipient_id" binding:"required,max=64,safe_id"`
	Amount      string `json:"amount" binding:"required,max=32,decimal_amount"`
}

// SubmitPinRequest is the request body for the PIN step.
type SubmitPinRequest struct {
	PIN string `json:"pin" binding:"required,numeric,min=4,max=12"`
}

// BiometricRequest carries the signed device attestation for the biometric step.
type BiometricRequest struct {
	DeviceID    string `json:"device_id" binding:"required,max=128,safe_id"`
	HasHardware bool   `json:"has_hardware"`
	Enrolled    bool   `json:"enrolled"`
	Passed      bool   `json:"passed"`
	Timestamp   int64  `json:"timestamp" binding:"required,gt=0"`
	Nonce       string `json:"nonce" binding:"required,max=128,safe_id"`
	Signature   string `json:"signature" binding:"required,hexadecimal,len=64"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	TransactionID    string `json:"transaction_id"`
	Type             string `json:"type"`
	CounterpartyID   string `json:"counterparty_id"`
	CounterpartyName string `json:"counterparty_name"`
	Amount           string `json:"amount"`
	Timestamp        string `json:"timestamp"`
	Category         string `json:"category"`
	BankTag          string `json:"bank_tag"`
}

// AccountResponse is the response for the caller's account.
type AccountResponse struct {
	AccountID    string                `json:"account_id"`
	DisplayName  string                `json:"display_name"`
	HolderName   string                `json:"holder_name"`
	Balance      string                `json:"balance"`
	Transactions []TransactionResponse `json:"transactions"`
}

// NewAccountResponse maps an account, formatting money with two decimals.
func NewAccountResponse(a *domain.Account) AccountResponse {
	out := AccountResponse{
		AccountID:    a.AccountID,
		DisplayName:  a.DisplayName,
		HolderName:   a.HolderName,
		Balance:      a.Balance.StringFixed(2),
		Transactions: make([]TransactionResponse, 0, len(a.Transactions)),
	}
	for _, t := range a.Transactions {
		out.Transactions = append(out.Transactions, newTransactionResponse(t))
	}
	return out
}

func newTransactionResponse(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:    t.TransactionID,
		Type:             string(t.Type),
		CounterpartyID:   t.CounterpartyID,
		CounterpartyName: t.CounterpartyName,
		Amount:           t.Amount.StringFixed(2),
		Timestamp:        t.Timestamp.UTC().Format(time.RFC3339),
		Category:         t.Category,
		BankTag:          t.BankTag,
	}
}

// ReceiptResponse is one party's view of a transfer: only the viewer's own
// balance and ledger entry are included.
type ReceiptResponse struct {
	TransferID  string              `json:"transfer_id"`
	SenderID    string              `json:"sender_id"`
	RecipientID string              `json:"recipient_id"`
	Amount      string              `json:"amount"`
	Balance     string              `json:"balance"`
	Entry       TransactionResponse `json:"entry"`
	Replayed    bool                `json:"replayed"`
}

// NewReceiptResponse maps a transfer result for viewerID. Anyone other than
// the recipient gets the sender's side.
func NewReceiptResponse(r *domain.TransferResult, viewerID string) *ReceiptResponse {
	if r == nil {
		return nil
	}
	balance, entry := r.SenderBalance, r.SenderEntry
	if viewerID == r.RecipientID {
		balance, entry = r.RecipientBalance, r.RecipientEntry
	}
	return &ReceiptResponse{
		TransferID:  r.TransferID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Amount:      r.Amount.StringFixed(2),
		Balance:     balance.StringFixed(2),
		Entry:       newTransactionResponse(entry),
		Replayed:    r.Replayed,
	}
}

// VoiceStepResponse is the outcome of the voice step as seen by the sender.
type VoiceStepResponse struct {
	Session  *domain.AuthSession `json:"session"`
	Transfer *ReceiptResponse    `json:"transfer,omitempty"`
}
