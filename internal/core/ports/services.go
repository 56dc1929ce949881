package ports

import (
	"context"
	"time"

	"secure-transfer-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildAttestationString(deviceID string, hasHardware, enrolled, passed bool, timestamp int64, nonce string) string
}

// HashService handles PIN hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID string
}

// ReceiptCache stores serialized transfer results keyed by transfer ID.
type ReceiptCache interface {
	Get(ctx context.Context, transferID string) ([]byte, error) // nil, nil when absent
	Set(ctx context.Context, transferID string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// PairLocker serialises ledger work on a set of accounts. Release must be
// called exactly once after a successful Acquire.
type PairLocker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// AuditService records security-relevant events without blocking callers.
type AuditService interface {
	Log(ctx context.Context, entry AuditEntry)
}

// AuditEntry is the input for AuditService.Log.
type AuditEntry struct {
	AccountID string
	SessionID string
	Action    domain.AuditAction
	Details   map[string]any
	IPAddress string
}

// --- Service Ports (Business Logic) ---

// TransferExecutor applies an authorized transfer to the ledger.
type TransferExecutor interface {
	Execute(ctx context.Context, req TransferRequest) (*domain.TransferResult, error)
	Resume(ctx context.Context, senderID, transferID string) (*domain.TransferResult, error)
	Receipt(ctx context.Context, transferID string) (*domain.TransferResult, error)
}

// TransferRequest holds validated input for a ledger transfer.
type TransferRequest struct {
	SenderID    string
	RecipientID string
	Amount      decimal.Decimal
	TransferID  string
}

// SessionService drives authorization sessions on behalf of callers.
type SessionService interface {
	Start(ctx context.Context, req StartTransferRequest) (*domain.AuthSession, error)
	Get(ctx context.Context, callerID, sessionID string) (*domain.AuthSession, error)
	SubmitPin(ctx context.Context, callerID, sessionID, pin string) (*domain.AuthSession, error)
	RequestBiometric(ctx context.Context, callerID, sessionID string, capability BiometricCapability) (*domain.AuthSession, error)
	RequestVoice(ctx context.Context, callerID, sessionID string, clip domain.AudioClip) (*VoiceStepResult, error)
	// Commit re-runs the transfer of an Authorized session under its
	// transfer ID, for when the first attempt failed after authorization.
	Commit(ctx context.Context, callerID, sessionID string) (*VoiceStepResult, error)
	Cancel(ctx context.Context, callerID, sessionID string) (*domain.AuthSession, error)
}

// StartTransferRequest holds input for opening a session.
type StartTransferRequest struct {
	SenderID    string
	RecipientID string
	Amount      decimal.Decimal
	ClientIP    string
}

// VoiceStepResult is the outcome of the final factor: the session snapshot and,
// when authorized, the committed transfer.
type VoiceStepResult struct {
	Session  *domain.AuthSession    `json:"session"`
	Transfer *domain.TransferResult `json:"transfer,omitempty"`
}

// AccountService exposes read access to a caller's own account.
type AccountService interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

// TranscriptionService runs spoken commands through the transcriber.
type TranscriptionService interface {
	Transcribe(ctx context.Context, clip domain.AudioClip) (string, error)
	ProcessCommand(ctx context.Context, accountID string, clip domain.AudioClip) (*domain.CommandResult, error)
}
