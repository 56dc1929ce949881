package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultReceiptTTL   = 24 * time.Hour
	creditRetries       = 3
	creditRetryInterval = 20 * time.Millisecond
)

// ExecutorConfig tunes the ledger executor.
type ExecutorConfig struct {
	BankTag    string
	ReceiptTTL time.Duration
}

// TransferExecutorImpl implements ports.TransferExecutor on top of a
// document store with per-record compare-and-swap. Work on a sender/recipient
// pair is serialised by the PairLocker; the transfer ID makes every step
// replay-safe.
type TransferExecutorImpl struct {
	accounts ports.AccountStore
	locker   ports.PairLocker
	receipts ports.ReceiptCache
	audit    ports.AuditService
	cfg      ExecutorConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewTransferExecutor creates a ledger executor. receipts and audit may be nil.
func NewTransferExecutor(
	accounts ports.AccountStore,
	locker ports.PairLocker,
	receipts ports.ReceiptCache,
	audit ports.AuditService,
	cfg ExecutorConfig,
	log zerolog.Logger,
) *TransferExecutorImpl {
	if cfg.BankTag == "" {
		cfg.BankTag = domain.DefaultBankTag
	}
	if cfg.ReceiptTTL <= 0 {
		cfg.ReceiptTTL = defaultReceiptTTL
	}
	return &TransferExecutorImpl{
		accounts: accounts,
		locker:   locker,
		receipts: receipts,
		audit:    audit,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute moves amount from sender to recipient exactly once per transfer ID.
//
// Flow:
//  1. Validate input, then try the receipt cache (fast path).
//  2. Lock the account pair.
//  3. Re-read both accounts and look for the transfer ID in both logs.
//  4. Both sides present: replay. One side present: complete the other.
//  5. Otherwise check funds, debit the sender, then credit the recipient.
//
// A credit failure after a successful debit returns PartialCommit; callers
// retry through Resume with the same transfer ID.
func (e *TransferExecutorImpl) Execute(ctx context.Context, req ports.TransferRequest) (*domain.TransferResult, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	if cached, err := e.cachedReceipt(ctx, req.TransferID); err == nil && cached != nil {
		if !sameTransfer(cached, req) {
			return nil, apperror.ErrTransferIDReused()
		}
		cached.Replayed = true
		return cached, nil
	}

	release, err := e.locker.Acquire(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, apperror.ErrLockTimeout(err)
	}
	defer release()

	sender, recipient, err := e.loadPair(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, err
	}

	debit, debited := sender.FindTransaction(req.TransferID)
	credit, credited := recipient.FindTransaction(req.TransferID)

	if debited && !matchesDebit(debit, req) {
		return nil, apperror.ErrTransferIDReused()
	}
	if credited && !matchesCredit(credit, req) {
		return nil, apperror.ErrTransferIDReused()
	}

	// Once the pair is locked and checked, the writes run to completion even if
	// the caller goes away, so cancellation cannot leave half a transfer behind.
	writeCtx := context.WithoutCancel(ctx)
	l := e.log.With().Str("transfer_id", req.TransferID).Logger()

	switch {
	case debited && credited:
		l.Info().Msg("transfer already applied, replaying")
		result := e.buildResult(req, sender, recipient, debit, credit)
		result.Replayed = true
		return result, nil

	case debited && !credited:
		l.Warn().Msg("completing recipient side of a partial transfer")
		credit = e.creditEntry(req, sender, debit.Timestamp)
		recipient, err = e.applyCredit(writeCtx, recipient, req, credit)
		if err != nil {
			return nil, e.partialCommit(ctx, req, err)
		}

	case !debited && credited:
		l.Warn().Msg("completing sender side of a partial transfer")
		if !sender.CanCover(req.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		debit = e.debitEntry(req, recipient, credit.Timestamp)
		if sender, err = e.applyDebit(writeCtx, sender, req, debit); err != nil {
			return nil, err
		}

	default:
		if !sender.CanCover(req.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		ts := e.now()
		debit = e.debitEntry(req, recipient, ts)
		credit = e.creditEntry(req, sender, ts)

		if sender, err = e.applyDebit(writeCtx, sender, req, debit); err != nil {
			return nil, err
		}
		recipient, err = e.applyCredit(writeCtx, recipient, req, credit)
		if err != nil {
			return nil, e.partialCommit(ctx, req, err)
		}
	}

	result := e.buildResult(req, sender, recipient, debit, credit)
	e.storeReceipt(writeCtx, result)

	l.Info().
		Str("sender_id", req.SenderID).
		Str("recipient_id", req.RecipientID).
		Str("amount", req.Amount.String()).
		Msg("transfer committed")

	if e.audit != nil {
		e.audit.Log(ctx, ports.AuditEntry{
			AccountID: req.SenderID,
			Action:    domain.AuditActionTransfer,
			Details: map[string]any{
				"transfer_id":  req.TransferID,
				"recipient_id": req.RecipientID,
				"amount":       req.Amount.String(),
			},
		})
	}

	return result, nil
}

// Resume re-runs a transfer from the sender's log entry. It is the keyed
// retry path for PartialCommit.
func (e *TransferExecutorImpl) Resume(ctx context.Context, senderID, transferID string) (*domain.TransferResult, error) {
	sender, err := e.find(ctx, senderID, "Sender")
	if err != nil {
		return nil, err
	}

	entry, ok := sender.FindTransaction(transferID)
	if !ok || entry.Type != domain.TransactionTypeTransfer {
		return nil, apperror.ErrTransferNotFound()
	}

	if e.audit != nil {
		e.audit.Log(ctx, ports.AuditEntry{
			AccountID: senderID,
			Action:    domain.AuditActionTransferResume,
			Details:   map[string]any{"transfer_id": transferID},
		})
	}

	return e.Execute(ctx, ports.TransferRequest{
		SenderID:    senderID,
		RecipientID: entry.CounterpartyID,
		Amount:      entry.Amount,
		TransferID:  transferID,
	})
}

// Receipt returns the cached result of a committed transfer.
func (e *TransferExecutorImpl) Receipt(ctx context.Context, transferID string) (*domain.TransferResult, error) {
	result, err := e.cachedReceipt(ctx, transferID)
	if err != nil {
		return nil, apperror.ErrOperationFailed(err)
	}
	if result == nil {
		return nil, apperror.ErrTransferNotFound()
	}
	return result, nil
}

func (e *TransferExecutorImpl) loadPair(ctx context.Context, senderID, recipientID string) (*domain.Account, *domain.Account, error) {
	sender, err := e.find(ctx, senderID, "Sender")
	if err != nil {
		return nil, nil, err
	}
	recipient, err := e.find(ctx, recipientID, "Recipient")
	if err != nil {
		return nil, nil, err
	}
	return sender, recipient, nil
}

func (e *TransferExecutorImpl) find(ctx context.Context, accountID, which string) (*domain.Account, error) {
	acct, err := e.accounts.FindByField(ctx, domain.FieldAccountID, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if acct == nil {
		return nil, apperror.ErrAccountNotFound(which)
	}
	return acct, nil
}

func (e *TransferExecutorImpl) applyDebit(ctx context.Context, sender *domain.Account, req ports.TransferRequest, entry domain.Transaction) (*domain.Account, error) {
	newBalance := sender.Balance.Sub(req.Amount)
	err := e.accounts.UpdateFields(ctx, sender.AccountID, sender.Version, domain.AccountUpdate{
		Balance: newBalance,
		Append:  entry,
	})
	if err != nil {
		return nil, mapStoreError(err, "Sender")
	}
	return applied(sender, newBalance, entry), nil
}

// applyCredit credits the recipient, re-reading and retrying on a version
// conflict. Credits never need a funds check, so a retry is always safe.
func (e *TransferExecutorImpl) applyCredit(ctx context.Context, recipient *domain.Account, req ports.TransferRequest, entry domain.Transaction) (*domain.Account, error) {
	current := recipient
	var result *domain.Account

	op := func() error {
		newBalance := current.Balance.Add(req.Amount)
		err := e.accounts.UpdateFields(ctx, current.AccountID, current.Version, domain.AccountUpdate{
			Balance: newBalance,
			Append:  entry,
		})
		if err == nil {
			result = applied(current, newBalance, entry)
			return nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return backoff.Permanent(mapStoreError(err, "Recipient"))
		}

		fresh, findErr := e.find(ctx, current.AccountID, "Recipient")
		if findErr != nil {
			return backoff.Permanent(findErr)
		}
		if _, ok := fresh.FindTransaction(req.TransferID); ok {
			// Someone else completed the credit between our read and write.
			result = fresh
			return nil
		}
		current = fresh
		return mapStoreError(err, "Recipient")
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(creditRetryInterval), creditRetries)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *TransferExecutorImpl) partialCommit(ctx context.Context, req ports.TransferRequest, cause error) error {
	e.log.Error().
		Err(cause).
		Str("transfer_id", req.TransferID).
		Str("sender_id", req.SenderID).
		Str("recipient_id", req.RecipientID).
		Msg("sender debited but recipient credit failed")

	if e.audit != nil {
		e.audit.Log(ctx, ports.AuditEntry{
			AccountID: req.SenderID,
			Action:    domain.AuditActionTransferPartial,
			Details: map[string]any{
				"transfer_id":  req.TransferID,
				"recipient_id": req.RecipientID,
				"amount":       req.Amount.String(),
				"error":        cause.Error(),
			},
		})
	}
	return apperror.ErrPartialCommit(req.TransferID, cause)
}

func (e *TransferExecutorImpl) debitEntry(req ports.TransferRequest, recipient *domain.Account, ts time.Time) domain.Transaction {
	return domain.Transaction{
		TransactionID:    req.TransferID,
		Type:             domain.TransactionTypeTransfer,
		CounterpartyID:   recipient.AccountID,
		CounterpartyName: recipient.HolderName,
		Amount:           req.Amount,
		Timestamp:        ts,
		Category:         domain.TransactionCategory,
		BankTag:          e.cfg.BankTag,
	}
}

func (e *TransferExecutorImpl) creditEntry(req ports.TransferRequest, sender *domain.Account, ts time.Time) domain.Transaction {
	return domain.Transaction{
		TransactionID:    req.TransferID,
		Type:             domain.TransactionTypeReceive,
		CounterpartyID:   sender.AccountID,
		CounterpartyName: sender.HolderName,
		Amount:           req.Amount,
		Timestamp:        ts,
		Category:         domain.TransactionCategory,
		BankTag:          e.cfg.BankTag,
	}
}

func (e *TransferExecutorImpl) buildResult(req ports.TransferRequest, sender, recipient *domain.Account, debit, credit domain.Transaction) *domain.TransferResult {
	return &domain.TransferResult{
		TransferID:       req.TransferID,
		SenderID:         req.SenderID,
		RecipientID:      req.RecipientID,
		Amount:           req.Amount,
		SenderBalance:    sender.Balance,
		RecipientBalance: recipient.Balance,
		SenderEntry:      debit,
		RecipientEntry:   credit,
	}
}

func (e *TransferExecutorImpl) cachedReceipt(ctx context.Context, transferID string) (*domain.TransferResult, error) {
	if e.receipts == nil {
		return nil, nil
	}
	raw, err := e.receipts.Get(ctx, transferID)
	if err != nil {
		e.log.Warn().Err(err).Str("transfer_id", transferID).Msg("receipt cache read failed")
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var result domain.TransferResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *TransferExecutorImpl) storeReceipt(ctx context.Context, result *domain.TransferResult) {
	if e.receipts == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		e.log.Warn().Err(err).Msg("marshal receipt")
		return
	}
	if err := e.receipts.Set(ctx, result.TransferID, raw, e.cfg.ReceiptTTL); err != nil {
		e.log.Warn().Err(err).Str("transfer_id", result.TransferID).Msg("receipt cache write failed")
	}
}

func validateTransfer(req ports.TransferRequest) error {
	if req.TransferID == "" {
		return apperror.Validation("transfer_id is required")
	}
	if req.SenderID == "" || req.RecipientID == "" {
		return apperror.Validation("sender and recipient are required")
	}
	if !domain.ValidAmount(req.Amount) {
		return apperror.ErrInvalidAmount()
	}
	if req.SenderID == req.RecipientID {
		return apperror.ErrSameAccount()
	}
	return nil
}

func mapStoreError(err error, which string) error {
	switch {
	case errors.Is(err, ports.ErrVersionConflict):
		return apperror.ErrTransferConflict(err)
	case errors.Is(err, ports.ErrAccountNotFound):
		return apperror.ErrAccountNotFound(which)
	default:
		return apperror.ErrDatabaseError(err)
	}
}

// applied returns a copy of acct as it looks after a successful update.
func applied(acct *domain.Account, balance decimal.Decimal, entry domain.Transaction) *domain.Account {
	out := *acct
	out.Balance = balance
	out.Version = acct.Version + 1
	out.Transactions = append(append([]domain.Transaction(nil), acct.Transactions...), entry)
	return &out
}

func sameTransfer(r *domain.TransferResult, req ports.TransferRequest) bool {
	return r.SenderID == req.SenderID && r.RecipientID == req.RecipientID && r.Amount.Equal(req.Amount)
}

func matchesDebit(t domain.Transaction, req ports.TransferRequest) bool {
	return t.Type == domain.TransactionTypeTransfer && t.CounterpartyID == req.RecipientID && t.Amount.Equal(req.Amount)
}

func matchesCredit(t domain.Transaction, req ports.TransferRequest) bool {
	return t.Type == domain.TransactionTypeReceive && t.CounterpartyID == req.SenderID && t.Amount.Equal(req.Amount)
}
