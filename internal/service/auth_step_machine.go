package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// BiometricPrompt is shown by the device when the challenge starts.
const BiometricPrompt = "Login using Biometrics"

// MachineConfig tunes an AuthStepMachine.
type MachineConfig struct {
	MaxBiometricAttempts int
	BiometricPrompt      string
}

func (c MachineConfig) withDefaults() MachineConfig {
	if c.MaxBiometricAttempts < 1 {
		c.MaxBiometricAttempts = 3
	}
	if c.BiometricPrompt == "" {
		c.BiometricPrompt = BiometricPrompt
	}
	return c
}

// AuthStepMachine walks one transfer through PIN, biometric and voice
// verification. Steps run one at a time; the mutex is never held across a
// call to the account store, the device, or the voice service.
type AuthStepMachine struct {
	accounts ports.AccountStore
	hasher   ports.HashService
	voice    ports.VoiceAuthenticator
	cfg      MachineConfig
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	session  domain.AuthSession
	subject  string
	inflight context.CancelFunc
}

// NewAuthStepMachine creates a machine in state Idle for the given session.
func NewAuthStepMachine(
	session domain.AuthSession,
	accounts ports.AccountStore,
	hasher ports.HashService,
	voice ports.VoiceAuthenticator,
	cfg MachineConfig,
	log zerolog.Logger,
) *AuthStepMachine {
	now := time.Now().UTC()
	session.State = domain.StateIdle
	session.Factors = domain.Factors{
		PIN:       domain.FactorUnverified,
		Biometric: domain.FactorUnverified,
		Voice:     domain.FactorUnverified,
	}
	session.RejectReason = ""
	session.BiometricAttempts = 0
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	return &AuthStepMachine{
		accounts: accounts,
		hasher:   hasher,
		voice:    voice,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("session_id", session.SessionID).Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		session:  session,
		subject:  session.SenderID,
	}
}

// Snapshot returns a copy of the current session.
func (m *AuthStepMachine) Snapshot() domain.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SubmitPin verifies the sender's PIN and that the balance covers the amount.
func (m *AuthStepMachine) SubmitPin(ctx context.Context, pin string) (domain.AuthSession, error) {
	stepCtx, prev, err := m.begin(ctx, "pin", domain.StatePinPending, domain.StateIdle, domain.StatePinPending)
	if err != nil {
		return m.Snapshot(), err
	}
	// A PIN step that is interrupted stays in PinPending so it can be retried.
	prev = domain.StatePinPending

	account, err := m.accounts.FindByField(stepCtx, domain.FieldAccountID, m.session.SenderID)
	if err != nil {
		return m.failed(ctx, prev, err)
	}
	if account == nil {
		return m.finish(func(s *domain.AuthSession) error {
			s.Factors.PIN = domain.FactorFailed
			m.reject(s, domain.ReasonAccountNotFound)
			return apperror.ErrAccountNotFound("Sender")
		})
	}

	match, err := m.hasher.Verify(pin, account.PinHash)
	if err != nil {
		return m.failed(ctx, prev, err)
	}

	return m.finish(func(s *domain.AuthSession) error {
		if !match {
			s.Factors.PIN = domain.FactorFailed
			m.reject(s, domain.ReasonInvalidCredential)
			return apperror.ErrInvalidCredential()
		}
		s.Factors.PIN = domain.FactorVerified
		if !account.CanCover(s.Amount) {
			m.reject(s, domain.ReasonInsufficientFunds)
			return apperror.ErrInsufficientFunds()
		}
		if account.DisplayName != "" {
			m.subject = account.DisplayName
		}
		m.transition(s, domain.StatePinVerified)
		return nil
	})
}

// RequestBiometric runs the device challenge. A failed challenge returns the
// session to PinVerified until the attempt budget is spent.
func (m *AuthStepMachine) RequestBiometric(ctx context.Context, capability ports.BiometricCapability) (domain.AuthSession, error) {
	stepCtx, prev, err := m.begin(ctx, "biometric", domain.StateBiometricPending, domain.StatePinVerified)
	if err != nil {
		return m.Snapshot(), err
	}

	hasHardware, err := capability.HasHardware(stepCtx)
	if err != nil {
		return m.failed(ctx, prev, err)
	}
	if !hasHardware {
		return m.finish(func(s *domain.AuthSession) error {
			s.Factors.Biometric = domain.FactorFailed
			m.reject(s, domain.ReasonBiometricUnavailable)
			return apperror.ErrBiometricUnavailable()
		})
	}

	enrolled, err := capability.IsEnrolled(stepCtx)
	if err != nil {
		return m.failed(ctx, prev, err)
	}
	if !enrolled {
		return m.finish(func(s *domain.AuthSession) error {
			s.Factors.Biometric = domain.FactorFailed
			m.reject(s, domain.ReasonBiometricNotEnrolled)
			return apperror.ErrBiometricNotEnrolled()
		})
	}

	passed, challengeErr := capability.Challenge(stepCtx, m.cfg.BiometricPrompt)
	if challengeErr != nil && !isAttestationError(challengeErr) {
		return m.failed(ctx, prev, challengeErr)
	}

	return m.finish(func(s *domain.AuthSession) error {
		s.BiometricAttempts++
		if passed && challengeErr == nil {
			s.Factors.Biometric = domain.FactorVerified
			m.transition(s, domain.StateBiometricVerified)
			return nil
		}

		failure := challengeErr
		if failure == nil {
			failure = apperror.ErrBiometricFailed()
		}
		if s.BiometricAttempts >= m.cfg.MaxBiometricAttempts {
			s.Factors.Biometric = domain.FactorFailed
			m.reject(s, domain.ReasonBiometricFailed)
			return failure
		}
		m.transition(s, domain.StatePinVerified)
		return failure
	})
}

// RequestVoice sends the recorded clip to the voice service. Reaching
// Authorized requires all three factors verified.
func (m *AuthStepMachine) RequestVoice(ctx context.Context, clip domain.AudioClip) (domain.AuthSession, error) {
	stepCtx, prev, err := m.begin(ctx, "voice", domain.StateVoicePending, domain.StateBiometricVerified)
	if err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	subject := m.subject
	m.mu.Unlock()

	verdict, err := m.voice.Authenticate(stepCtx, clip, subject)
	if err != nil {
		if callerGone(ctx) {
			return m.failed(ctx, prev, err)
		}
		return m.finish(func(s *domain.AuthSession) error {
			s.Factors.Voice = domain.FactorFailed
			m.reject(s, domain.ReasonVoiceServiceUnavailable)
			if apperror.CodeOf(err) == "" {
				return apperror.ErrVoiceServiceUnavailable(err)
			}
			return err
		})
	}

	return m.finish(func(s *domain.AuthSession) error {
		if verdict == nil || !verdict.Authenticated {
			s.Factors.Voice = domain.FactorFailed
			m.reject(s, domain.ReasonVoiceMismatch)
			return apperror.ErrVoiceMismatch()
		}
		s.Factors.Voice = domain.FactorVerified
		if !s.Factors.AllVerified() {
			m.reject(s, domain.ReasonOperationFailed)
			return apperror.ErrOperationFailed(errors.New("voice verified without prior factors"))
		}
		m.transition(s, domain.StateAuthorized)
		return nil
	})
}

// Cancel aborts the session from any non-terminal state, interrupting the
// step in flight. Cancelling a terminal session is a no-op.
func (m *AuthStepMachine) Cancel() domain.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.State.IsTerminal() {
		return m.session
	}
	if m.inflight != nil {
		m.inflight()
	}
	m.transition(&m.session, domain.StateCancelled)
	m.log.Info().Msg("session cancelled")
	return m.session
}

// begin validates that step may run from the current state, moves to pending
// and registers the step's cancel func.
func (m *AuthStepMachine) begin(ctx context.Context, step string, pending domain.SessionState, allowed ...domain.SessionState) (context.Context, domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.session.State
	if current == domain.StateCancelled {
		return nil, current, apperror.ErrSessionCancelled()
	}
	if m.inflight != nil {
		return nil, current, apperror.ErrStepInProgress()
	}
	if !stateIn(current, allowed) {
		return nil, current, apperror.ErrInvalidTransition(string(current), step)
	}

	stepCtx, cancel := context.WithCancel(ctx)
	m.inflight = cancel
	m.transition(&m.session, pending)
	m.log.Debug().Str("step", step).Str("from", string(current)).Msg("step started")
	return stepCtx, current, nil
}

// finish applies the outcome of a step unless the session was cancelled
// meanwhile, in which case the outcome is discarded.
func (m *AuthStepMachine) finish(apply func(s *domain.AuthSession) error) (domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearInflight()
	if m.session.State == domain.StateCancelled {
		return m.session, apperror.ErrSessionCancelled()
	}
	err := apply(&m.session)
	return m.session, err
}

// failed handles an infrastructure error during a step. If the caller went
// away the session goes back to prev so the step can be retried; otherwise the
// session is rejected with OperationFailed.
func (m *AuthStepMachine) failed(ctx context.Context, prev domain.SessionState, cause error) (domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearInflight()
	if m.session.State == domain.StateCancelled {
		return m.session, apperror.ErrSessionCancelled()
	}
	if callerGone(ctx) {
		m.transition(&m.session, prev)
		return m.session, apperror.ErrOperationFailed(ctx.Err())
	}

	m.log.Error().Err(cause).Str("state", string(m.session.State)).Msg("step failed")
	m.reject(&m.session, domain.ReasonOperationFailed)
	if apperror.CodeOf(cause) != "" {
		return m.session, cause
	}
	return m.session, apperror.ErrOperationFailed(cause)
}

func (m *AuthStepMachine) clearInflight() {
	if m.inflight != nil {
		m.inflight()
		m.inflight = nil
	}
}

func (m *AuthStepMachine) reject(s *domain.AuthSession, reason domain.RejectReason) {
	s.RejectReason = reason
	m.transition(s, domain.StateRejected)
	m.log.Info().Str("reason", string(reason)).Msg("session rejected")
}

func (m *AuthStepMachine) transition(s *domain.AuthSession, to domain.SessionState) {
	s.State = to
	s.UpdatedAt = m.now()
}

func stateIn(s domain.SessionState, allowed []domain.SessionState) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func callerGone(ctx context.Context) bool {
	return ctx.Err() != nil
}

func isAttestationError(err error) bool {
	return errors.Is(err, apperror.ErrInvalidAttestation()) || errors.Is(err, apperror.ErrBiometricFailed())
}
