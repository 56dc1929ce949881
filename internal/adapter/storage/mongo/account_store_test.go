package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mockDocuments struct {
	findOneFunc   func(ctx context.Context, filter interface{}) *gomongo.SingleResult
	insertOneFunc func(ctx context.Context, document interface{}) (*gomongo.InsertOneResult, error)
	updateOneFunc func(ctx context.Context, filter, update interface{}) (*gomongo.UpdateResult, error)
	countFunc     func(ctx context.Context, filter interface{}) (int64, error)
}

func (m *mockDocuments) FindOne(ctx context.Context, filter interface{}, _ ...*options.FindOneOptions) *gomongo.SingleResult {
	return m.findOneFunc(ctx, filter)
}

func (m *mockDocuments) InsertOne(ctx context.Context, document interface{}, _ ...*options.InsertOneOptions) (*gomongo.InsertOneResult, error) {
	if m.insertOneFunc != nil {
		return m.insertOneFunc(ctx, document)
	}
	return &gomongo.InsertOneResult{}, nil
}

func (m *mockDocuments) UpdateOne(ctx context.Context, filter interface{}, update interface{}, _ ...*options.UpdateOptions) (*gomongo.UpdateResult, error) {
	return m.updateOneFunc(ctx, filter, update)
}

func (m *mockDocuments) CountDocuments(ctx context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	return m.countFunc(ctx, filter)
}

type mockProvider struct {
	docs  *mockDocuments
	names []string
}

func (p *mockProvider) Collection(name string) Documents {
	p.names = append(p.names, name)
	return p.docs
}

func sampleAccount(t *testing.T) *domain.Account {
	t.Helper()
	return &domain.Account{
		AccountID:   "acc-1",
		DisplayName: "alice.d",
		HolderName:  "Alice Doe",
		PinHash:     "$argon2id$hash",
		Balance:     decimal.RequireFromString("150.25"),
		Version:     2,
		Transactions: []domain.Transaction{{
			TransactionID:    "t-1",
			Type:             domain.TransactionTypeReceive,
			CounterpartyID:   "acc-2",
			CounterpartyName: "Bob",
			Amount:           decimal.RequireFromString("50.25"),
			Timestamp:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Category:         domain.TransactionCategory,
			BankTag:          domain.DefaultBankTag,
		}},
	}
}

func TestFindByField_Found(t *testing.T) {
	want := sampleAccount(t)
	doc, err := fromAccount(want)
	require.NoError(t, err)

	var gotFilter interface{}
	provider := &mockProvider{docs: &mockDocuments{
		findOneFunc: func(_ context.Context, filter interface{}) *gomongo.SingleResult {
			gotFilter = filter
			return gomongo.NewSingleResultFromDocument(doc, nil, nil)
		},
	}}
	store := NewAccountStore(provider, "users")

	got, err := store.FindByField(context.Background(), domain.FieldDisplayName, "alice.d")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, bson.M{"displayName": "alice.d"}, gotFilter)
	assert.Equal(t, []string{"users"}, provider.names)
	assert.Equal(t, want.AccountID, got.AccountID)
	assert.True(t, want.Balance.Equal(got.Balance))
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Transactions, 1)
	assert.True(t, got.Transactions[0].Amount.Equal(decimal.RequireFromString("50.25")))
	assert.Equal(t, domain.TransactionTypeReceive, got.Transactions[0].Type)
	assert.Equal(t, want.Transactions[0].Timestamp, got.Transactions[0].Timestamp)
}

func TestFindByField_NotFound(t *testing.T) {
	provider := &mockProvider{docs: &mockDocuments{
		findOneFunc: func(context.Context, interface{}) *gomongo.SingleResult {
			return gomongo.NewSingleResultFromDocument(bson.D{}, gomongo.ErrNoDocuments, nil)
		},
	}}
	store := NewAccountStore(provider, "users")

	got, err := store.FindByField(context.Background(), domain.FieldAccountID, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByField_DriverError(t *testing.T) {
	provider := &mockProvider{docs: &mockDocuments{
		findOneFunc: func(context.Context, interface{}) *gomongo.SingleResult {
			return gomongo.NewSingleResultFromDocument(bson.D{}, errors.New("server selection timeout"), nil)
		},
	}}
	store := NewAccountStore(provider, "users")

	_, err := store.FindByField(context.Background(), domain.FieldAccountID, "acc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server selection timeout")
}

func TestFindByField_UnknownField(t *testing.T) {
	store := NewAccountStore(&mockProvider{docs: &mockDocuments{}}, "users")

	_, err := store.FindByField(context.Background(), "email", "x")
	require.Error(t, err)
}

func TestUpdateFields_Applied(t *testing.T) {
	var gotFilter, gotUpdate interface{}
	provider := &mockProvider{docs: &mockDocuments{
		updateOneFunc: func(_ context.Context, filter, update interface{}) (*gomongo.UpdateResult, error) {
			gotFilter, gotUpdate = filter, update
			return &gomongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		},
	}}
	store := NewAccountStore(provider, "users")

	entry := sampleAccount(t).Transactions[0]
	err := store.UpdateFields(context.Background(), "acc-1", 2, domain.AccountUpdate{
		Balance: decimal.RequireFromString("99.75"),
		Append:  entry,
	})
	require.NoError(t, err)

	assert.Equal(t, bson.M{"accountId": "acc-1", "version": int64(2)}, gotFilter)
	update := gotUpdate.(bson.M)
	assert.Equal(t, bson.M{"version": 1}, update["$inc"])
	set := update["$set"].(bson.M)
	assert.Equal(t, "99.75", set["balance"].(interface{ String() string }).String())
	pushed := update["$push"].(bson.M)["transactions"].(transactionDoc)
	assert.Equal(t, "t-1", pushed.TransactionID)
}

func TestUpdateFields_VersionConflict(t *testing.T) {
	provider := &mockProvider{docs: &mockDocuments{
		updateOneFunc: func(context.Context, interface{}, interface{}) (*gomongo.UpdateResult, error) {
			return &gomongo.UpdateResult{}, nil
		},
		countFunc: func(_ context.Context, filter interface{}) (int64, error) {
			assert.Equal(t, bson.M{"accountId": "acc-1"}, filter)
			return 1, nil
		},
	}}
	store := NewAccountStore(provider, "users")

	err := store.UpdateFields(context.Background(), "acc-1", 1, domain.AccountUpdate{Balance: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
}

func TestUpdateFields_Missing(t *testing.T) {
	provider := &mockProvider{docs: &mockDocuments{
		updateOneFunc: func(context.Context, interface{}, interface{}) (*gomongo.UpdateResult, error) {
			return &gomongo.UpdateResult{}, nil
		},
		countFunc: func(context.Context, interface{}) (int64, error) { return 0, nil },
	}}
	store := NewAccountStore(provider, "users")

	err := store.UpdateFields(context.Background(), "gone", 0, domain.AccountUpdate{Balance: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ports.ErrAccountNotFound)
}

func TestUpdateFields_DriverError(t *testing.T) {
	provider := &mockProvider{docs: &mockDocuments{
		updateOneFunc: func(context.Context, interface{}, interface{}) (*gomongo.UpdateResult, error) {
			return nil, errors.New("not primary")
		},
	}}
	store := NewAccountStore(provider, "users")

	err := store.UpdateFields(context.Background(), "acc-1", 0, domain.AccountUpdate{Balance: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrVersionConflict)
	assert.Contains(t, err.Error(), "not primary")
}

func TestCreate_InsertsDocument(t *testing.T) {
	var inserted interface{}
	provider := &mockProvider{docs: &mockDocuments{
		insertOneFunc: func(_ context.Context, document interface{}) (*gomongo.InsertOneResult, error) {
			inserted = document
			return &gomongo.InsertOneResult{}, nil
		},
	}}
	store := NewAccountStore(provider, "users")

	require.NoError(t, store.Create(context.Background(), sampleAccount(t)))
	doc := inserted.(accountDoc)
	assert.Equal(t, "acc-1", doc.AccountID)
	assert.Equal(t, "150.25", doc.Balance.String())
	assert.Len(t, doc.Transactions, 1)
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "1234567.89", "-5.5"} {
		v, err := toDecimal128(decimal.RequireFromString(s))
		require.NoError(t, err)
		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(s).Equal(back), s)
	}
}

func TestAuditRepository_Create(t *testing.T) {
	var inserted bson.M
	provider := &mockProvider{docs: &mockDocuments{
		insertOneFunc: func(_ context.Context, document interface{}) (*gomongo.InsertOneResult, error) {
			inserted = document.(bson.M)
			return &gomongo.InsertOneResult{}, nil
		},
	}}
	repo := NewAuditRepository(provider)

	id := uuid.New()
	err := repo.Create(context.Background(), &domain.AuditLog{
		ID:        id,
		AccountID: "acc-1",
		Action:    domain.AuditActionTransfer,
		Details:   `{"amount":"10.00"}`,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{AuditCollection}, provider.names)
	assert.Equal(t, id.String(), inserted["_id"])
	assert.Equal(t, "TRANSFER", inserted["action"])
	assert.Equal(t, bson.M{"amount": "10.00"}, inserted["details"])
}

func TestAuditRepository_RawDetails(t *testing.T) {
	var inserted bson.M
	provider := &mockProvider{docs: &mockDocuments{
		insertOneFunc: func(_ context.Context, document interface{}) (*gomongo.InsertOneResult, error) {
			inserted = document.(bson.M)
			return &gomongo.InsertOneResult{}, nil
		},
	}}

	err := NewAuditRepository(provider).Create(context.Background(), &domain.AuditLog{
		ID:      uuid.New(),
		Action:  domain.AuditActionVoiceCommand,
		Details: "not json",
	})
	require.NoError(t, err)
	assert.Equal(t, "not json", inserted["details"])
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context, *readpref.ReadPref) error { return f.err }

func TestHealthCheck(t *testing.T) {
	h := NewHealthCheck(fakePinger{})
	assert.NoError(t, h.Ping(context.Background()))
	assert.Equal(t, "mongodb", h.Name())

	assert.Error(t, NewHealthCheck(fakePinger{err: errors.New("down")}).Ping(context.Background()))
}
