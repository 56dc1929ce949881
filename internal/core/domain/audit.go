package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSessionStart      AuditAction = "SESSION_START"
	AuditActionPinVerified       AuditAction = "PIN_VERIFIED"
	AuditActionBiometricVerified AuditAction = "BIOMETRIC_VERIFIED"
	AuditActionVoiceVerified     AuditAction = "VOICE_VERIFIED"
	AuditActionSessionRejected   AuditAction = "SESSION_REJECTED"
	AuditActionSessionCancelled  AuditAction = "SESSION_CANCELLED"
	AuditActionSessionExpired    AuditAction = "SESSION_EXPIRED"
	AuditActionTransfer          AuditAction = "TRANSFER"
	AuditActionTransferPartial   AuditAction = "TRANSFER_PARTIAL"
	AuditActionTransferResume    AuditAction = "TRANSFER_RESUME"
	AuditActionVoiceCommand      AuditAction = "VOICE_COMMAND"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	AccountID string      `json:"account_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Action    AuditAction `json:"action"`
	Details   string      `json:"details,omitempty"` // JSON string
	IPAddress string      `json:"ip_address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
