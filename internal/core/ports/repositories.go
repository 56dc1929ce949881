package ports

import (
	"context"
	"errors"

	"secure-transfer-gateway/internal/core/domain"
)

// Store-level sentinel errors. Adapters return these (possibly wrapped) so the
// ledger executor can map them without knowing the backend.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrVersionConflict = errors.New("account version conflict")
)

// AccountStore is the document-oriented account persistence port.
//
// FindByField looks up one account by an equality predicate on field
// (domain.FieldAccountID or domain.FieldDisplayName). It returns nil, nil when
// no record matches.
//
// UpdateFields applies update only if the stored record still carries
// expectedVersion, bumping the version on success. It returns ErrVersionConflict
// when the record moved on and ErrAccountNotFound when it vanished.
type AccountStore interface {
	FindByField(ctx context.Context, field string, value string) (*domain.Account, error)
	UpdateFields(ctx context.Context, accountID string, expectedVersion int64, update domain.AccountUpdate) error
}

// AccountSeeder creates accounts. Used by fixtures and local bootstrapping.
type AccountSeeder interface {
	Create(ctx context.Context, account *domain.Account) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
