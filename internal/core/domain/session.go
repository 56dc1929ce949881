package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is a node of the authorization state machine.
type SessionState string

const (
	StateIdle              SessionState = "Idle"
	StatePinPending        SessionState = "PinPending"
	StatePinVerified       SessionState = "PinVerified"
	StateBiometricPending  SessionState = "BiometricPending"
	StateBiometricVerified SessionState = "BiometricVerified"
	StateVoicePending      SessionState = "VoicePending"
	StateAuthorized        SessionState = "Authorized"
	StateRejected          SessionState = "Rejected"
	StateCancelled         SessionState = "Cancelled"
)

// IsTerminal returns true for absorbing states.
func (s SessionState) IsTerminal() bool {
	return s == StateAuthorized || s == StateRejected || s == StateCancelled
}

// FactorStatus is the outcome of one authentication factor.
type FactorStatus string

const (
	FactorUnverified FactorStatus = "Unverified"
	FactorVerified   FactorStatus = "Verified"
	FactorFailed     FactorStatus = "Failed"
)

// Factors tracks the three authentication factors of a session.
type Factors struct {
	PIN       FactorStatus `json:"pin"`
	Biometric FactorStatus `json:"biometric"`
	Voice     FactorStatus `json:"voice"`
}

// AllVerified is the only condition under which a session may be Authorized.
func (f Factors) AllVerified() bool {
	return f.PIN == FactorVerified && f.Biometric == FactorVerified && f.Voice == FactorVerified
}

// RejectReason explains why a session ended in Rejected.
type RejectReason string

const (
	ReasonInvalidCredential       RejectReason = "InvalidCredential"
	ReasonInsufficientFunds       RejectReason = "InsufficientFunds"
	ReasonAccountNotFound         RejectReason = "AccountNotFound"
	ReasonBiometricUnavailable    RejectReason = "BiometricUnavailable"
	ReasonBiometricNotEnrolled    RejectReason = "BiometricNotEnrolled"
	ReasonBiometricFailed         RejectReason = "BiometricFailed"
	ReasonVoiceServiceUnavailable RejectReason = "VoiceServiceUnavailable"
	ReasonVoiceMismatch           RejectReason = "VoiceMismatch"
	ReasonOperationFailed         RejectReason = "OperationFailed"
)

// AuthSession is a point-in-time copy of one transfer authorization.
type AuthSession struct {
	SessionID         string          `json:"session_id"`
	SenderID          string          `json:"sender_id"`
	RecipientID       string          `json:"recipient_id"`
	Amount            decimal.Decimal `json:"amount"`
	TransferID        string          `json:"transfer_id"`
	Factors           Factors         `json:"factors"`
	State             SessionState    `json:"state"`
	RejectReason      RejectReason    `json:"reject_reason,omitempty"`
	BiometricAttempts int             `json:"biometric_attempts"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
