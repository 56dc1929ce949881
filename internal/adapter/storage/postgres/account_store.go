package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountStore implements ports.AccountStore and ports.AccountSeeder on the
// accounts and account_transactions tables. Each UpdateFields is one
// transaction guarded by the row's version.
type AccountStore struct {
	pool Pool
}

// NewAccountStore creates a PostgreSQL account store.
func NewAccountStore(pool Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

var lookupColumns = map[string]string{
	domain.FieldAccountID:   "account_id",
	domain.FieldDisplayName: "display_name",
}

// FindByField loads an account and its transaction log, or returns nil.
func (s *AccountStore) FindByField(ctx context.Context, field string, value string) (*domain.Account, error) {
	column, ok := lookupColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported lookup field %q", field)
	}

	query := `SELECT account_id, COALESCE(display_name, ''), holder_name, pin_hash, balance::text, version
		FROM accounts WHERE ` + column + ` = $1`

	var (
		a       domain.Account
		balance string
	)
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&a.AccountID, &a.DisplayName, &a.HolderName, &a.PinHash, &balance, &a.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by %s: %w", column, err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance of %s: %w", a.AccountID, err)
	}

	if a.Transactions, err = s.transactions(ctx, a.AccountID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) transactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT transaction_id, type, counterparty_id, counterparty_name, amount::text, ts, category, bank_tag
		FROM account_transactions WHERE account_id = $1 ORDER BY ts, transaction_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			txType string
			amount string
			ts     time.Time
		)
		if err := rows.Scan(&t.TransactionID, &txType, &t.CounterpartyID, &t.CounterpartyName, &amount, &ts, &t.Category, &t.BankTag); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(txType)
		t.Timestamp = ts.UTC()
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", t.TransactionID, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UpdateFields sets the balance, bumps the version and appends one entry,
// provided the stored version still equals expectedVersion.
func (s *AccountStore) UpdateFields(ctx context.Context, accountID string, expectedVersion int64, update domain.AccountUpdate) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1::numeric, version = version + 1
		WHERE account_id = $2 AND version = $3`,
		update.Balance.String(), accountID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)`, accountID).Scan(&exists); err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			err = ports.ErrAccountNotFound
			return err
		}
		err = fmt.Errorf("account %s expected version %d: %w", accountID, expectedVersion, ports.ErrVersionConflict)
		return err
	}

	if err = insertTransaction(ctx, tx, accountID, update.Append); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account update: %w", err)
	}
	return nil
}

// Create inserts an account together with any existing log entries.
func (s *AccountStore) Create(ctx context.Context, a *domain.Account) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var displayName any
	if a.DisplayName != "" {
		displayName = a.DisplayName
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (account_id, display_name, holder_name, pin_hash, balance, version)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
		a.AccountID, displayName, a.HolderName, a.PinHash, a.Balance.String(), a.Version)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	for _, t := range a.Transactions {
		if err = insertTransaction(ctx, tx, a.AccountID, t); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, accountID string, t domain.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO account_transactions
			(account_id, transaction_id, type, counterparty_id, counterparty_name, amount, ts, category, bank_tag)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		accountID, t.TransactionID, string(t.Type), t.CounterpartyID, t.CounterpartyName,
		t.Amount.String(), t.Timestamp, t.Category, t.BankTag)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
