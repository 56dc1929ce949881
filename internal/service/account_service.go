package service

import (
	"context"
	"sort"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"
)

// accountService implements ports.AccountService.
type accountService struct {
	accounts ports.AccountStore
}

// NewAccountService creates a new account query service.
func NewAccountService(accounts ports.AccountStore) ports.AccountService {
	return &accountService{accounts: accounts}
}

// GetAccount returns the account with its transaction log, newest first.
func (s *accountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.accounts.FindByField(ctx, domain.FieldAccountID, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if acct == nil {
		return nil, apperror.ErrAccountNotFound("Caller")
	}

	sort.SliceStable(acct.Transactions, func(i, j int) bool {
		return acct.Transactions[i].Timestamp.After(acct.Transactions[j].Timestamp)
	})
	return acct, nil
}
