package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	gomongo "go.mongodb.org/mongo-driver/mongo"
)

type accountDoc struct {
	AccountID    string               `bson:"accountId"`
	DisplayName  string               `bson:"displayName,omitempty"`
	HolderName   string               `bson:"holderName"`
	PinHash      string               `bson:"pinHash"`
	Balance      primitive.Decimal128 `bson:"balance"`
	Version      int64                `bson:"version"`
	Transactions []transactionDoc     `bson:"transactions"`
}

type transactionDoc struct {
	TransactionID    string               `bson:"transactionId"`
	Type             string               `bson:"type"`
	CounterpartyID   string               `bson:"counterpartyId"`
	CounterpartyName string               `bson:"counterpartyName"`
	Amount           primitive.Decimal128 `bson:"amount"`
	Timestamp        time.Time            `bson:"timestamp"`
	Category         string               `bson:"category"`
	BankTag          string               `bson:"bankTag"`
}

var lookupFields = map[string]bool{
	domain.FieldAccountID:   true,
	domain.FieldDisplayName: true,
}

// AccountStore implements ports.AccountStore on a MongoDB collection. Each
// account is one document holding its balance, version and embedded log.
type AccountStore struct {
	provider   CollectionProvider
	collection string
}

// NewAccountStore creates a MongoDB-backed account store.
func NewAccountStore(provider CollectionProvider, collection string) *AccountStore {
	return &AccountStore{provider: provider, collection: collection}
}

// FindByField returns the account whose field equals value, or nil.
func (s *AccountStore) FindByField(ctx context.Context, field string, value string) (*domain.Account, error) {
	if !lookupFields[field] {
		return nil, fmt.Errorf("unsupported lookup field %q", field)
	}

	var doc accountDoc
	err := s.provider.Collection(s.collection).FindOne(ctx, bson.M{field: value}).Decode(&doc)
	if err != nil {
		if errors.Is(err, gomongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by %s: %w", field, err)
	}
	return doc.toDomain()
}

// UpdateFields sets the balance, appends one log entry and bumps the version,
// guarded by the expected version.
func (s *AccountStore) UpdateFields(ctx context.Context, accountID string, expectedVersion int64, update domain.AccountUpdate) error {
	balance, err := toDecimal128(update.Balance)
	if err != nil {
		return err
	}
	entry, err := fromTransaction(update.Append)
	if err != nil {
		return err
	}

	coll := s.provider.Collection(s.collection)
	res, err := coll.UpdateOne(ctx,
		bson.M{"accountId": accountID, "version": expectedVersion},
		bson.M{
			"$set":  bson.M{"balance": balance},
			"$inc":  bson.M{"version": 1},
			"$push": bson.M{"transactions": entry},
		},
	)
	if err != nil {
		return fmt.Errorf("update account %s: %w", accountID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"accountId": accountID})
	if err != nil {
		return fmt.Errorf("count account %s: %w", accountID, err)
	}
	if n == 0 {
		return ports.ErrAccountNotFound
	}
	return fmt.Errorf("account %s moved past version %d: %w", accountID, expectedVersion, ports.ErrVersionConflict)
}

// Create inserts a new account document.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	doc, err := fromAccount(account)
	if err != nil {
		return err
	}
	if _, err := s.provider.Collection(s.collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert account %s: %w", account.AccountID, err)
	}
	return nil
}

func (d accountDoc) toDomain() (*domain.Account, error) {
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s balance: %w", d.AccountID, err)
	}
	a := &domain.Account{
		AccountID:    d.AccountID,
		DisplayName:  d.DisplayName,
		HolderName:   d.HolderName,
		PinHash:      d.PinHash,
		Balance:      balance,
		Version:      d.Version,
		Transactions: make([]domain.Transaction, 0, len(d.Transactions)),
	}
	for _, t := range d.Transactions {
		amount, err := fromDecimal128(t.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.TransactionID, err)
		}
		a.Transactions = append(a.Transactions, domain.Transaction{
			TransactionID:    t.TransactionID,
			Type:             domain.TransactionType(t.Type),
			CounterpartyID:   t.CounterpartyID,
			CounterpartyName: t.CounterpartyName,
			Amount:           amount,
			Timestamp:        t.Timestamp.UTC(),
			Category:         t.Category,
			BankTag:          t.BankTag,
		})
	}
	return a, nil
}

func fromAccount(a *domain.Account) (accountDoc, error) {
	balance, err := toDecimal128(a.Balance)
	if err != nil {
		return accountDoc{}, err
	}
	doc := accountDoc{
		AccountID:    a.AccountID,
		DisplayName:  a.DisplayName,
		HolderName:   a.HolderName,
		PinHash:      a.PinHash,
		Balance:      balance,
		Version:      a.Version,
		Transactions: make([]transactionDoc, 0, len(a.Transactions)),
	}
	for _, t := range a.Transactions {
		entry, err := fromTransaction(t)
		if err != nil {
			return accountDoc{}, err
		}
		doc.Transactions = append(doc.Transactions, entry)
	}
	return doc, nil
}

func fromTransaction(t domain.Transaction) (transactionDoc, error) {
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return transactionDoc{}, err
	}
	return transactionDoc{
		TransactionID:    t.TransactionID,
		Type:             string(t.Type),
		CounterpartyID:   t.CounterpartyID,
		CounterpartyName: t.CounterpartyName,
		Amount:           amount,
		Timestamp:        t.Timestamp,
		Category:         t.Category,
		BankTag:          t.BankTag,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}
