package service

import (
	"context"
	"sync"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultSessionTTL = 10 * time.Minute

// SessionConfig tunes the session registry.
type SessionConfig struct {
	Machine    MachineConfig
	SessionTTL time.Duration
}

type sessionEntry struct {
	machine  *AuthStepMachine
	clientIP string
}

// SessionServiceImpl implements ports.SessionService with an in-process
// registry. Sessions are owned by their AuthStepMachine; the registry map is
// the only state shared between them.
type SessionServiceImpl struct {
	accounts ports.AccountStore
	hasher   ports.HashService
	voice    ports.VoiceAuthenticator
	executor ports.TransferExecutor
	audit    ports.AuditService
	cfg      SessionConfig
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSessionService creates the registry of live authorization sessions.
func NewSessionService(
	accounts ports.AccountStore,
	hasher ports.HashService,
	voice ports.VoiceAuthenticator,
	executor ports.TransferExecutor,
	audit ports.AuditService,
	cfg SessionConfig,
	log zerolog.Logger,
) *SessionServiceImpl {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &SessionServiceImpl{
		accounts: accounts,
		hasher:   hasher,
		voice:    voice,
		executor: executor,
		audit:    audit,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*sessionEntry),
	}
}

func validateStart(req ports.StartTransferRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.SenderID, validation.Required),
		validation.Field(&req.RecipientID, validation.Required),
	)
	if err != nil {
		return apperror.Validation(err.Error())
	}
	if !domain.ValidAmount(req.Amount) {
		return apperror.ErrInvalidAmount()
	}
	if req.SenderID == req.RecipientID {
		return apperror.ErrSameAccount()
	}
	return nil
}

// Start opens a session for the sender. The recipient must exist; the sender
// and the funds are checked by the PIN step.
func (s *SessionServiceImpl) Start(ctx context.Context, req ports.StartTransferRequest) (*domain.AuthSession, error) {
	if err := validateStart(req); err != nil {
		return nil, err
	}

	recipient, err := s.accounts.FindByField(ctx, domain.FieldAccountID, req.RecipientID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if recipient == nil {
		return nil, apperror.ErrAccountNotFound("Recipient")
	}

	session := domain.AuthSession{
		SessionID:   uuid.NewString(),
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		TransferID:  uuid.NewString(),
		CreatedAt:   s.now(),
	}
	machine := NewAuthStepMachine(session, s.accounts, s.hasher, s.voice, s.cfg.Machine, s.log)

	s.mu.Lock()
	s.sessions[session.SessionID] = &sessionEntry{machine: machine, clientIP: req.ClientIP}
	s.mu.Unlock()

	snap := machine.Snapshot()
	s.log.Info().
		Str("session_id", snap.SessionID).
		Str("sender_id", snap.SenderID).
		Str("recipient_id", snap.RecipientID).
		Str("amount", snap.Amount.String()).
		Msg("authorization session started")

	s.record(ctx, &snap, req.ClientIP, domain.AuditActionSessionStart, map[string]any{
		"recipient_id": snap.RecipientID,
		"amount":       snap.Amount.String(),
		"transfer_id":  snap.TransferID,
	})
	return &snap, nil
}

// Get returns the caller's session.
func (s *SessionServiceImpl) Get(_ context.Context, callerID, sessionID string) (*domain.AuthSession, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	snap := entry.machine.Snapshot()
	return &snap, nil
}

// SubmitPin runs the PIN step.
func (s *SessionServiceImpl) SubmitPin(ctx context.Context, callerID, sessionID, pin string) (*domain.AuthSession, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := entry.machine.SubmitPin(ctx, pin)
	s.afterStep(ctx, entry, &snap, domain.AuditActionPinVerified, snap.Factors.PIN == domain.FactorVerified && err == nil)
	return &snap, err
}

// RequestBiometric runs the biometric step against the device capability.
func (s *SessionServiceImpl) RequestBiometric(ctx context.Context, callerID, sessionID string, capability ports.BiometricCapability) (*domain.AuthSession, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := entry.machine.RequestBiometric(ctx, capability)
	s.afterStep(ctx, entry, &snap, domain.AuditActionBiometricVerified, snap.Factors.Biometric == domain.FactorVerified && err == nil)
	return &snap, err
}

// RequestVoice runs the voice step and, once the session is Authorized,
// executes the transfer under the session's transfer ID.
func (s *SessionServiceImpl) RequestVoice(ctx context.Context, callerID, sessionID string, clip domain.AudioClip) (*ports.VoiceStepResult, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := entry.machine.RequestVoice(ctx, clip)
	verified := snap.State == domain.StateAuthorized && err == nil
	s.afterStep(ctx, entry, &snap, domain.AuditActionVoiceVerified, verified)

	if !verified {
		return &ports.VoiceStepResult{Session: &snap}, err
	}
	return s.commit(ctx, &snap)
}

// Commit retries the transfer of an Authorized session. The executor is keyed
// on the session's transfer ID, so a transfer that already went through is
// replayed rather than applied twice.
func (s *SessionServiceImpl) Commit(ctx context.Context, callerID, sessionID string) (*ports.VoiceStepResult, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	snap := entry.machine.Snapshot()
	if snap.State != domain.StateAuthorized {
		return &ports.VoiceStepResult{Session: &snap}, apperror.ErrInvalidTransition(string(snap.State), "commit")
	}
	return s.commit(ctx, &snap)
}

func (s *SessionServiceImpl) commit(ctx context.Context, snap *domain.AuthSession) (*ports.VoiceStepResult, error) {
	result := &ports.VoiceStepResult{Session: snap}
	transfer, err := s.executor.Execute(ctx, ports.TransferRequest{
		SenderID:    snap.SenderID,
		RecipientID: snap.RecipientID,
		Amount:      snap.Amount,
		TransferID:  snap.TransferID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", snap.SessionID).Str("transfer_id", snap.TransferID).Msg("authorized transfer failed")
		return result, err
	}
	result.Transfer = transfer
	return result, nil
}

// Cancel aborts the caller's session.
func (s *SessionServiceImpl) Cancel(ctx context.Context, callerID, sessionID string) (*domain.AuthSession, error) {
	entry, err := s.lookup(callerID, sessionID)
	if err != nil {
		return nil, err
	}
	before := entry.machine.Snapshot().State
	snap := entry.machine.Cancel()
	if !before.IsTerminal() {
		s.record(ctx, &snap, entry.clientIP, domain.AuditActionSessionCancelled, map[string]any{"from": string(before)})
	}
	return &snap, nil
}

// StartJanitor expires idle sessions every interval until StopJanitor.
func (s *SessionServiceImpl) StartJanitor(interval time.Duration) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.log.Info().Dur("interval", interval).Dur("ttl", s.cfg.SessionTTL).Msg("session janitor started")
		for {
			select {
			case <-ticker.C:
				s.expire()
			case <-stopCh:
				return
			}
		}
	}()
}

// StopJanitor stops the janitor and waits for it to exit.
func (s *SessionServiceImpl) StopJanitor() {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	s.wg.Wait()
	s.log.Info().Msg("session janitor stopped")
}

// expire drops sessions idle longer than the TTL, cancelling live ones.
func (s *SessionServiceImpl) expire() int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)

	var stale []*sessionEntry
	s.mu.Lock()
	for id, entry := range s.sessions {
		if entry.machine.Snapshot().UpdatedAt.Before(cutoff) {
			stale = append(stale, entry)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range stale {
		before := entry.machine.Snapshot().State
		if before.IsTerminal() {
			continue
		}
		snap := entry.machine.Cancel()
		s.record(context.Background(), &snap, entry.clientIP, domain.AuditActionSessionExpired, map[string]any{"from": string(before)})
	}
	if len(stale) > 0 {
		s.log.Debug().Int("count", len(stale)).Msg("expired sessions")
	}
	return len(stale)
}

func (s *SessionServiceImpl) lookup(callerID, sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok {
		return nil, apperror.ErrSessionNotFound()
	}
	if entry.machine.Snapshot().SenderID != callerID {
		return nil, apperror.ErrSessionForbidden()
	}
	return entry, nil
}

// afterStep audits the outcome of a step.
func (s *SessionServiceImpl) afterStep(ctx context.Context, entry *sessionEntry, snap *domain.AuthSession, onSuccess domain.AuditAction, succeeded bool) {
	switch {
	case succeeded:
		s.record(ctx, snap, entry.clientIP, onSuccess, nil)
	case snap.State == domain.StateRejected:
		s.record(ctx, snap, entry.clientIP, domain.AuditActionSessionRejected, map[string]any{
			"reason": string(snap.RejectReason),
		})
	}
}

func (s *SessionServiceImpl) record(ctx context.Context, snap *domain.AuthSession, ip string, action domain.AuditAction, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, ports.AuditEntry{
		AccountID: snap.SenderID,
		SessionID: snap.SessionID,
		Action:    action,
		Details:   details,
		IPAddress: ip,
	})
}
