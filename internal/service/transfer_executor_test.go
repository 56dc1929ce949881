package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"secure-transfer-gateway/internal/adapter/storage/memory"
	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/internal/core/ports/mocks"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func transferReq(id, amount string) ports.TransferRequest {
	return ports.TransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec(amount), TransferID: id}
}

// ---- gomock cases ----

func TestTransferExecutor_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := NewTransferExecutor(mocks.NewMockAccountStore(ctrl), mocks.NewMockPairLocker(ctrl), nil, nil, ExecutorConfig{}, newTestLogger())

	tests := []struct {
		name string
		req  ports.TransferRequest
		code string
	}{
		{"zero amount", transferReq("t1", "0"), "XFER_004"},
		{"negative amount", transferReq("t1", "-5"), "XFER_004"},
		{"below currency scale", transferReq("t1", "10.005"), "XFER_004"},
		{"same account", ports.TransferRequest{SenderID: "a", RecipientID: "a", Amount: dec("1"), TransferID: "t1"}, "XFER_006"},
		{"missing id", transferReq("", "1"), "REQ_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestTransferExecutor_CachedReceiptShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	receipts := mocks.NewMockReceiptCache(ctrl)
	exec := NewTransferExecutor(mocks.NewMockAccountStore(ctrl), mocks.NewMockPairLocker(ctrl), receipts, nil, ExecutorConfig{}, newTestLogger())

	raw, _ := json.Marshal(domain.TransferResult{TransferID: "t1", SenderID: "alice", RecipientID: "bob", Amount: dec("25")})
	receipts.EXPECT().Get(gomock.Any(), "t1").Return(raw, nil).Times(2)

	res, err := exec.Execute(context.Background(), transferReq("t1", "25"))
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	_, err = exec.Execute(context.Background(), transferReq("t1", "30"))
	assert.True(t, errors.Is(err, apperror.ErrTransferIDReused()))
}

func TestTransferExecutor_LockTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockPairLocker(ctrl)
	exec := NewTransferExecutor(mocks.NewMockAccountStore(ctrl), locker, nil, nil, ExecutorConfig{}, newTestLogger())

	locker.EXPECT().Acquire(gomock.Any(), "alice", "bob").Return(nil, context.DeadlineExceeded)

	_, err := exec.Execute(context.Background(), transferReq("t1", "5"))
	assert.Equal(t, "SYS_002", apperror.CodeOf(err))
}

func TestTransferExecutor_InsufficientFundsWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	locker := mocks.NewMockPairLocker(ctrl)
	exec := NewTransferExecutor(accounts, locker, nil, nil, ExecutorConfig{}, newTestLogger())

	released := false
	locker.EXPECT().Acquire(gomock.Any(), "alice", "bob").Return(func() { released = true }, nil)
	accounts.EXPECT().FindByField(gomock.Any(), domain.FieldAccountID, "alice").
		Return(&domain.Account{AccountID: "alice", Balance: dec("10")}, nil)
	accounts.EXPECT().FindByField(gomock.Any(), domain.FieldAccountID, "bob").
		Return(&domain.Account{AccountID: "bob", Balance: dec("0")}, nil)

	_, err := exec.Execute(context.Background(), transferReq("t1", "10.01"))
	assert.True(t, errors.Is(err, apperror.ErrInsufficientFunds()))
	assert.True(t, released)
}

func TestTransferExecutor_RecipientMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	locker := mocks.NewMockPairLocker(ctrl)
	exec := NewTransferExecutor(accounts, locker, nil, nil, ExecutorConfig{}, newTestLogger())

	locker.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(func() {}, nil)
	accounts.EXPECT().FindByField(gomock.Any(), domain.FieldAccountID, "alice").
		Return(&domain.Account{AccountID: "alice", Balance: dec("10")}, nil)
	accounts.EXPECT().FindByField(gomock.Any(), domain.FieldAccountID, "bob").Return(nil, nil)

	_, err := exec.Execute(context.Background(), transferReq("t1", "1"))
	require.Error(t, err)
	assert.Equal(t, "XFER_002", apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "Recipient")
}

func TestTransferExecutor_AuditsCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl)
	store := newLedger(t, "100", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, audit, ExecutorConfig{}, newTestLogger())

	audit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e ports.AuditEntry) {
		assert.Equal(t, domain.AuditActionTransfer, e.Action)
		assert.Equal(t, "alice", e.AccountID)
		assert.Equal(t, "t1", e.Details["transfer_id"])
	})

	_, err := exec.Execute(context.Background(), transferReq("t1", "40"))
	require.NoError(t, err)
}

// ---- ledger behaviour on the in-memory store ----

func newLedger(t *testing.T, aliceBalance, bobBalance string) *memory.AccountStore {
	t.Helper()
	store := memory.NewAccountStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Account{AccountID: "alice", DisplayName: "alice", HolderName: "Alice Doe", Balance: dec(aliceBalance)}))
	require.NoError(t, store.Create(ctx, &domain.Account{AccountID: "bob", DisplayName: "bob", HolderName: "Bob Roe", Balance: dec(bobBalance)}))
	return store
}

func balances(t *testing.T, store ports.AccountStore, ids ...string) []decimal.Decimal {
	t.Helper()
	out := make([]decimal.Decimal, 0, len(ids))
	for _, id := range ids {
		a, err := store.FindByField(context.Background(), domain.FieldAccountID, id)
		require.NoError(t, err)
		require.NotNil(t, a)
		out = append(out, a.Balance)
	}
	return out
}

func TestTransferExecutor_CommitsBothSides(t *testing.T) {
	store := newLedger(t, "100", "5")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{BankTag: "TestBank"}, newTestLogger())

	res, err := exec.Execute(context.Background(), transferReq("t1", "40.50"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.True(t, res.SenderBalance.Equal(dec("59.50")))
	assert.True(t, res.RecipientBalance.Equal(dec("45.50")))

	alice, _ := store.FindByField(context.Background(), domain.FieldAccountID, "alice")
	bob, _ := store.FindByField(context.Background(), domain.FieldAccountID, "bob")

	debit, ok := alice.FindTransaction("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TransactionTypeTransfer, debit.Type)
	assert.Equal(t, "Bob Roe", debit.CounterpartyName)
	assert.Equal(t, "TestBank", debit.BankTag)
	assert.Equal(t, domain.TransactionCategory, debit.Category)

	credit, ok := bob.FindTransaction("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TransactionTypeReceive, credit.Type)
	assert.Equal(t, "alice", credit.CounterpartyID)
	assert.Equal(t, debit.Timestamp, credit.Timestamp)

	total := alice.Balance.Add(bob.Balance)
	assert.True(t, total.Equal(dec("105")), "money is conserved")
}

func TestTransferExecutor_ExactBalanceAllowed(t *testing.T) {
	store := newLedger(t, "10", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())

	res, err := exec.Execute(context.Background(), transferReq("t1", "10"))
	require.NoError(t, err)
	assert.True(t, res.SenderBalance.IsZero())
}

func TestTransferExecutor_ReplayIsIdempotent(t *testing.T) {
	store := newLedger(t, "100", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())
	ctx := context.Background()

	_, err := exec.Execute(ctx, transferReq("t1", "30"))
	require.NoError(t, err)

	res, err := exec.Execute(ctx, transferReq("t1", "30"))
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	b := balances(t, store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("70")))
	assert.True(t, b[1].Equal(dec("30")))

	_, err = exec.Execute(ctx, transferReq("t1", "31"))
	assert.True(t, errors.Is(err, apperror.ErrTransferIDReused()))
}

// flakyStore fails the next n updates of one account with a non-conflict error.
type flakyStore struct {
	*memory.AccountStore
	account string
	fails   atomic.Int32
}

func (s *flakyStore) UpdateFields(ctx context.Context, id string, version int64, u domain.AccountUpdate) error {
	if id == s.account && s.fails.Load() > 0 {
		s.fails.Add(-1)
		return errors.New("connection reset by peer")
	}
	return s.AccountStore.UpdateFields(ctx, id, version, u)
}

func TestTransferExecutor_PartialCommitThenResume(t *testing.T) {
	store := &flakyStore{AccountStore: newLedger(t, "100", "0"), account: "bob"}
	store.fails.Store(1)
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), memory.NewTTLCache(), nil, ExecutorConfig{}, newTestLogger())
	ctx := context.Background()

	_, err := exec.Execute(ctx, transferReq("t1", "25"))
	require.Error(t, err)
	assert.Equal(t, "XFER_003", apperror.CodeOf(err))

	b := balances(t, store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("75")), "sender debited")
	assert.True(t, b[1].Equal(dec("0")), "recipient not yet credited")

	_, err = exec.Receipt(ctx, "t1")
	assert.True(t, errors.Is(err, apperror.ErrTransferNotFound()), "no receipt for a partial transfer")

	res, err := exec.Resume(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.RecipientID)
	assert.True(t, res.Amount.Equal(dec("25")))

	b = balances(t, store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("75")), "sender not debited twice")
	assert.True(t, b[1].Equal(dec("25")))

	receipt, err := exec.Receipt(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", receipt.TransferID)

	again, err := exec.Resume(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
}

func TestTransferExecutor_ResumeUnknownTransfer(t *testing.T) {
	store := newLedger(t, "100", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())

	_, err := exec.Resume(context.Background(), "alice", "nope")
	assert.True(t, errors.Is(err, apperror.ErrTransferNotFound()))

	// Only the sender side can be resumed.
	_, err = exec.Execute(context.Background(), transferReq("t1", "1"))
	require.NoError(t, err)
	_, err = exec.Resume(context.Background(), "bob", "t1")
	assert.True(t, errors.Is(err, apperror.ErrTransferNotFound()))
}

// racingStore lands a foreign credit on the recipient just before our first
// write, forcing a version conflict.
type racingStore struct {
	*memory.AccountStore
	once sync.Once
}

func (s *racingStore) UpdateFields(ctx context.Context, id string, version int64, u domain.AccountUpdate) error {
	if id == "bob" {
		s.once.Do(func() {
			bob, _ := s.AccountStore.FindByField(ctx, domain.FieldAccountID, "bob")
			_ = s.AccountStore.UpdateFields(ctx, "bob", bob.Version, domain.AccountUpdate{
				Balance: bob.Balance.Add(dec("1")),
				Append:  domain.Transaction{TransactionID: "foreign", Type: domain.TransactionTypeReceive, Amount: dec("1")},
			})
		})
	}
	return s.AccountStore.UpdateFields(ctx, id, version, u)
}

func TestTransferExecutor_CreditRetriesOnConflict(t *testing.T) {
	store := &racingStore{AccountStore: newLedger(t, "100", "0")}
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())

	res, err := exec.Execute(context.Background(), transferReq("t1", "10"))
	require.NoError(t, err)
	assert.True(t, res.RecipientBalance.Equal(dec("11")))

	b := balances(t, store, "alice", "bob")
	assert.True(t, b[1].Equal(dec("11")))
}

func TestTransferExecutor_WritesSurviveCallerCancel(t *testing.T) {
	store := newLedger(t, "100", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	canceller := &cancelOnDebit{AccountStore: store, cancel: cancel}
	exec.accounts = canceller

	_, err := exec.Execute(ctx, transferReq("t1", "10"))
	require.NoError(t, err)

	b := balances(t, store, "alice", "bob")
	assert.True(t, b[0].Add(b[1]).Equal(dec("100")))
	assert.True(t, b[1].Equal(dec("10")))
}

type cancelOnDebit struct {
	*memory.AccountStore
	cancel context.CancelFunc
}

func (s *cancelOnDebit) UpdateFields(ctx context.Context, id string, version int64, u domain.AccountUpdate) error {
	err := s.AccountStore.UpdateFields(ctx, id, version, u)
	if id == "alice" {
		s.cancel()
	}
	return err
}

func TestTransferExecutor_ConcurrentTransfersConserveMoney(t *testing.T) {
	store := memory.NewAccountStore()
	ctx := context.Background()
	ids := []string{"a0", "a1", "a2", "a3", "a4"}
	for _, id := range ids {
		require.NoError(t, store.Create(ctx, &domain.Account{AccountID: id, DisplayName: id, Balance: dec("1000")}))
	}
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := ids[i%len(ids)], ids[(i*3+1)%len(ids)]
			if from == to {
				to = ids[(i+1)%len(ids)]
			}
			_, err := exec.Execute(ctx, ports.TransferRequest{
				SenderID:    from,
				RecipientID: to,
				Amount:      dec("7.25"),
				TransferID:  fmt.Sprintf("tx-%d", i),
			})
			if err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	total := decimal.Zero
	for _, b := range balances(t, store, ids...) {
		total = total.Add(b)
	}
	assert.True(t, total.Equal(dec("5000")), "total was %s", total)
}

func TestTransferExecutor_ConcurrentDrainNeverOverdraws(t *testing.T) {
	store := newLedger(t, "500", "0")
	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), nil, nil, ExecutorConfig{}, newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := exec.Execute(ctx, transferReq(fmt.Sprintf("drain-%d", i), "10"))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperror.ErrInsufficientFunds()):
				insufficient.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(50), ok.Load())
	assert.Equal(t, int32(50), insufficient.Load())
	b := balances(t, store, "alice", "bob")
	assert.True(t, b[0].IsZero())
	assert.True(t, b[1].Equal(dec("500")))
}
