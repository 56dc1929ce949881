package memory

import (
	"context"
	"fmt"
	"sync"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
)

// AccountStore is a process-local ports.AccountStore for development and
// tests. Records are copied on the way in and out so callers never share
// memory with the store.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*domain.Account)}
}

// Create inserts a new account. Account IDs and display names must be unique.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountID]; ok {
		return fmt.Errorf("account %s already exists", account.AccountID)
	}
	for _, existing := range s.accounts {
		if account.DisplayName != "" && existing.DisplayName == account.DisplayName {
			return fmt.Errorf("display name %s already taken", account.DisplayName)
		}
	}
	s.accounts[account.AccountID] = clone(account)
	return nil
}

// FindByField returns the account whose field equals value, or nil.
func (s *AccountStore) FindByField(_ context.Context, field string, value string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch field {
	case domain.FieldAccountID:
		if a, ok := s.accounts[value]; ok {
			return clone(a), nil
		}
		return nil, nil
	case domain.FieldDisplayName:
		for _, a := range s.accounts {
			if a.DisplayName == value {
				return clone(a), nil
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported lookup field %q", field)
	}
}

// UpdateFields applies update if the stored version equals expectedVersion.
func (s *AccountStore) UpdateFields(_ context.Context, accountID string, expectedVersion int64, update domain.AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return ports.ErrAccountNotFound
	}
	if a.Version != expectedVersion {
		return fmt.Errorf("account %s at version %d, expected %d: %w", accountID, a.Version, expectedVersion, ports.ErrVersionConflict)
	}

	a.Balance = update.Balance
	a.Transactions = append(a.Transactions, update.Append)
	a.Version++
	return nil
}

func clone(a *domain.Account) *domain.Account {
	out := *a
	out.Transactions = append([]domain.Transaction(nil), a.Transactions...)
	return &out
}
