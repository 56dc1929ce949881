package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure-transfer-gateway/internal/adapter/storage/memory"
	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/internal/core/ports/mocks"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	svc   *SessionServiceImpl
	store *memory.AccountStore
	voice *mocks.MockVoiceAuthenticator
	bio   *mocks.MockBiometricCapability
	audit *mocks.MockAuditService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	hasher := newCheapHashService()
	pinHash, err := hasher.Hash("4321")
	require.NoError(t, err)

	store := memory.NewAccountStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Account{AccountID: "alice", DisplayName: "alice.d", HolderName: "Alice Doe", PinHash: pinHash, Balance: dec("250")}))
	require.NoError(t, store.Create(ctx, &domain.Account{AccountID: "bob", DisplayName: "bob.r", HolderName: "Bob Roe", Balance: dec("0")}))

	f := &sessionFixture{
		store: store,
		voice: mocks.NewMockVoiceAuthenticator(ctrl),
		bio:   mocks.NewMockBiometricCapability(ctrl),
		audit: mocks.NewMockAuditService(ctrl),
	}
	f.audit.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()

	exec := NewTransferExecutor(store, memory.NewKeyedLocker(), memory.NewTTLCache(), nil, ExecutorConfig{}, newTestLogger())
	f.svc = NewSessionService(store, hasher, f.voice, exec, f.audit, SessionConfig{
		Machine:    MachineConfig{MaxBiometricAttempts: 3},
		SessionTTL: time.Minute,
	}, newTestLogger())
	return f
}

func (f *sessionFixture) start(t *testing.T, amount string) *domain.AuthSession {
	t.Helper()
	s, err := f.svc.Start(context.Background(), ports.StartTransferRequest{
		SenderID: "alice", RecipientID: "bob", Amount: dec(amount), ClientIP: "10.0.0.1",
	})
	require.NoError(t, err)
	return s
}

func (f *sessionFixture) passDevice() {
	f.bio.EXPECT().HasHardware(gomock.Any()).Return(true, nil)
	f.bio.EXPECT().IsEnrolled(gomock.Any()).Return(true, nil)
	f.bio.EXPECT().Challenge(gomock.Any(), BiometricPrompt).Return(true, nil)
}

func TestSessionService_FullFlowCommitsTransfer(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.start(t, "100")
	assert.Equal(t, domain.StateIdle, s.State)
	assert.NotEmpty(t, s.TransferID)

	s, err := f.svc.SubmitPin(ctx, "alice", s.SessionID, "4321")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePinVerified, s.State)

	f.passDevice()
	s, err = f.svc.RequestBiometric(ctx, "alice", s.SessionID, f.bio)
	require.NoError(t, err)
	assert.Equal(t, domain.StateBiometricVerified, s.State)

	clip := domain.AudioClip{Data: []byte("voice"), Filename: domain.DefaultAudioFilename, ContentType: domain.DefaultAudioContentType}
	f.voice.EXPECT().Authenticate(gomock.Any(), clip, "alice.d").Return(&domain.Verdict{Authenticated: true}, nil)

	res, err := f.svc.RequestVoice(ctx, "alice", s.SessionID, clip)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthorized, res.Session.State)
	require.NotNil(t, res.Transfer)
	assert.Equal(t, s.TransferID, res.Transfer.TransferID)
	assert.True(t, res.Transfer.SenderBalance.Equal(dec("150")))
	assert.True(t, res.Transfer.RecipientBalance.Equal(dec("100")))

	got, err := f.svc.Get(ctx, "alice", s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthorized, got.State)
	assert.True(t, got.Factors.AllVerified())
}

func TestSessionService_StartValidation(t *testing.T) {
	f := newSessionFixture(t)

	tests := []struct {
		name string
		req  ports.StartTransferRequest
		code string
	}{
		{"missing sender", ports.StartTransferRequest{RecipientID: "bob", Amount: dec("1")}, "REQ_001"},
		{"missing recipient", ports.StartTransferRequest{SenderID: "alice", Amount: dec("1")}, "REQ_001"},
		{"zero amount", ports.StartTransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec("0")}, "XFER_004"},
		{"sub-cent amount", ports.StartTransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec("0.001")}, "XFER_004"},
		{"self transfer", ports.StartTransferRequest{SenderID: "alice", RecipientID: "alice", Amount: dec("1")}, "XFER_006"},
		{"unknown recipient", ports.StartTransferRequest{SenderID: "alice", RecipientID: "carol", Amount: dec("1")}, "XFER_002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Start(context.Background(), tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestSessionService_OwnershipAndLookup(t *testing.T) {
	f := newSessionFixture(t)
	s := f.start(t, "10")

	_, err := f.svc.Get(context.Background(), "bob", s.SessionID)
	assert.True(t, errors.Is(err, apperror.ErrSessionForbidden()))

	_, err = f.svc.SubmitPin(context.Background(), "bob", s.SessionID, "4321")
	assert.True(t, errors.Is(err, apperror.ErrSessionForbidden()))

	_, err = f.svc.Get(context.Background(), "alice", "does-not-exist")
	assert.True(t, errors.Is(err, apperror.ErrSessionNotFound()))
}

func TestSessionService_VoiceMismatchMovesNoMoney(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.start(t, "100")

	_, err := f.svc.SubmitPin(ctx, "alice", s.SessionID, "4321")
	require.NoError(t, err)
	f.passDevice()
	_, err = f.svc.RequestBiometric(ctx, "alice", s.SessionID, f.bio)
	require.NoError(t, err)

	f.voice.EXPECT().Authenticate(gomock.Any(), gomock.Any(), "alice.d").Return(&domain.Verdict{Authenticated: false}, nil)
	res, err := f.svc.RequestVoice(ctx, "alice", s.SessionID, domain.AudioClip{Data: []byte("x")})
	assert.True(t, errors.Is(err, apperror.ErrVoiceMismatch()))
	assert.Equal(t, domain.StateRejected, res.Session.State)
	assert.Nil(t, res.Transfer)

	b := balances(t, f.store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("250")))
	assert.True(t, b[1].IsZero())
}

// failingLocker refuses the first n acquisitions, then delegates.
type failingLocker struct {
	inner ports.PairLocker
	n     int
}

func (l *failingLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	if l.n > 0 {
		l.n--
		return nil, errors.New("lock busy")
	}
	return l.inner.Acquire(ctx, keys...)
}

func (f *sessionFixture) authorize(t *testing.T, amount string) *domain.AuthSession {
	t.Helper()
	ctx := context.Background()
	s := f.start(t, amount)
	_, err := f.svc.SubmitPin(ctx, "alice", s.SessionID, "4321")
	require.NoError(t, err)
	f.passDevice()
	_, err = f.svc.RequestBiometric(ctx, "alice", s.SessionID, f.bio)
	require.NoError(t, err)
	return s
}

func TestSessionService_CommitRetriesFailedTransfer(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.svc.executor = NewTransferExecutor(f.store, &failingLocker{inner: memory.NewKeyedLocker(), n: 1}, nil, nil, ExecutorConfig{}, newTestLogger())
	s := f.authorize(t, "100")

	f.voice.EXPECT().Authenticate(gomock.Any(), gomock.Any(), "alice.d").Return(&domain.Verdict{Authenticated: true}, nil)
	res, err := f.svc.RequestVoice(ctx, "alice", s.SessionID, domain.AudioClip{Data: []byte("x")})
	assert.Equal(t, "SYS_002", apperror.CodeOf(err))
	assert.Equal(t, domain.StateAuthorized, res.Session.State)
	assert.Nil(t, res.Transfer)

	b := balances(t, f.store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("250")))

	res, err = f.svc.Commit(ctx, "alice", s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, res.Transfer)
	assert.Equal(t, s.TransferID, res.Transfer.TransferID)
	assert.False(t, res.Transfer.Replayed)

	// a second commit is a replay, not a second debit
	res, err = f.svc.Commit(ctx, "alice", s.SessionID)
	require.NoError(t, err)
	assert.True(t, res.Transfer.Replayed)

	b = balances(t, f.store, "alice", "bob")
	assert.True(t, b[0].Equal(dec("150")))
	assert.True(t, b[1].Equal(dec("100")))
}

func TestSessionService_CommitRequiresAuthorized(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.authorize(t, "10")

	res, err := f.svc.Commit(ctx, "alice", s.SessionID)
	assert.Equal(t, "SESS_002", apperror.CodeOf(err))
	assert.Equal(t, domain.StateBiometricVerified, res.Session.State)

	_, err = f.svc.Commit(ctx, "bob", s.SessionID)
	assert.Equal(t, "SESS_005", apperror.CodeOf(err))
}

func TestSessionService_WrongPinRejects(t *testing.T) {
	f := newSessionFixture(t)
	s := f.start(t, "10")

	got, err := f.svc.SubmitPin(context.Background(), "alice", s.SessionID, "0000")
	assert.True(t, errors.Is(err, apperror.ErrInvalidCredential()))
	assert.Equal(t, domain.StateRejected, got.State)
	assert.Equal(t, domain.ReasonInvalidCredential, got.RejectReason)
}

func TestSessionService_Cancel(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	s := f.start(t, "10")

	got, err := f.svc.Cancel(ctx, "alice", s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, got.State)

	_, err = f.svc.SubmitPin(ctx, "alice", s.SessionID, "4321")
	assert.True(t, errors.Is(err, apperror.ErrSessionCancelled()))

	again, err := f.svc.Cancel(ctx, "alice", s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, again.State)
}

func TestSessionService_ExpireIdleSessions(t *testing.T) {
	f := newSessionFixture(t)
	live := f.start(t, "10")
	done := f.start(t, "10")
	_, err := f.svc.Cancel(context.Background(), "alice", done.SessionID)
	require.NoError(t, err)

	entry, err := f.svc.lookup("alice", live.SessionID)
	require.NoError(t, err)

	// terminal sessions stay readable, and frozen, until the janitor runs
	got, err := f.svc.Get(context.Background(), "alice", done.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, got.State)
	_, err = f.svc.SubmitPin(context.Background(), "alice", done.SessionID, "4321")
	assert.True(t, errors.Is(err, apperror.ErrSessionCancelled()))

	base := time.Now().UTC()
	f.svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, 2, f.svc.expire())

	_, err = f.svc.Get(context.Background(), "alice", live.SessionID)
	assert.True(t, errors.Is(err, apperror.ErrSessionNotFound()))
	assert.Equal(t, domain.StateCancelled, entry.machine.Snapshot().State)
	_, err = f.svc.Get(context.Background(), "alice", done.SessionID)
	assert.True(t, errors.Is(err, apperror.ErrSessionNotFound()))

	assert.Equal(t, 0, f.svc.expire())
}

func TestSessionService_JanitorLifecycle(t *testing.T) {
	f := newSessionFixture(t)
	f.svc.StartJanitor(5 * time.Millisecond)
	f.svc.StartJanitor(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.svc.StopJanitor()
	f.svc.StopJanitor()
}
