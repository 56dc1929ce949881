package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so callers can
// write errors.Is(err, apperror.ErrVoiceMismatch()).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Credentials (CRED) ----

func ErrInvalidCredential() *AppError {
	return New("CRED_001", "PIN does not match", http.StatusUnauthorized)
}

// ---- Biometric (BIO) ----

func ErrBiometricUnavailable() *AppError {
	return New("BIO_001", "Biometric hardware is not available on this device", http.StatusUnprocessableEntity)
}

func ErrBiometricNotEnrolled() *AppError {
	return New("BIO_002", "No biometrics are enrolled on this device", http.StatusUnprocessableEntity)
}

func ErrBiometricFailed() *AppError {
	return New("BIO_003", "Biometric challenge failed", http.StatusUnauthorized)
}

func ErrInvalidAttestation() *AppError {
	return New("BIO_004", "Device attestation is invalid or expired", http.StatusUnauthorized)
}

// ---- Voice authentication (VOICE) ----

func ErrVoiceServiceUnavailable(err error) *AppError {
	return Wrap("VOICE_001", "Voice authentication service unavailable", http.StatusBadGateway, err)
}

func ErrVoiceTimeout(err error) *AppError {
	return Wrap("VOICE_002", "Voice authentication timed out", http.StatusGatewayTimeout, err)
}

func ErrVoiceMismatch() *AppError {
	return New("VOICE_003", "Voice did not match the account holder", http.StatusUnauthorized)
}

func ErrVoiceMalformedResponse(err error) *AppError {
	return Wrap("VOICE_004", "Voice authentication service returned a malformed response", http.StatusBadGateway, err)
}

// ---- Transfer ledger (XFER) ----

func ErrInsufficientFunds() *AppError {
	return New("XFER_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrAccountNotFound(which string) *AppError {
	return New("XFER_002", fmt.Sprintf("%s account not found", which), http.StatusNotFound)
}

func ErrPartialCommit(transferID string, err error) *AppError {
	return Wrap("XFER_003",
		fmt.Sprintf("Transfer %s debited the sender but the recipient credit failed; resume the transfer", transferID),
		http.StatusConflict, err)
}

func ErrInvalidAmount() *AppError {
	return New("XFER_004", "Amount must be positive with at most two decimal places", http.StatusBadRequest)
}

func ErrTransferConflict(err error) *AppError {
	return Wrap("XFER_005", "Account was modified concurrently", http.StatusConflict, err)
}

func ErrSameAccount() *AppError {
	return New("XFER_006", "Sender and recipient must differ", http.StatusBadRequest)
}

func ErrTransferNotFound() *AppError {
	return New("XFER_007", "Transfer not found", http.StatusNotFound)
}

func ErrTransferIDReused() *AppError {
	return New("XFER_008", "Transfer ID already used for a different transfer", http.StatusConflict)
}

// ---- Verification jobs (JOB) ----

func ErrUploadFailed(err error) *AppError {
	return Wrap("JOB_001", "Submitting the verification job failed", http.StatusBadGateway, err)
}

func ErrPollTimeout(jobID string) *AppError {
	return New("JOB_002", fmt.Sprintf("Job %s did not finish in time", jobID), http.StatusGatewayTimeout)
}

func ErrJobFailed(reason string) *AppError {
	return New("JOB_003", fmt.Sprintf("Job failed: %s", reason), http.StatusBadGateway)
}

func ErrJobMalformedResponse(err error) *AppError {
	return Wrap("JOB_004", "Job service returned a malformed response", http.StatusBadGateway, err)
}

func ErrTranscriptionFailed(err error) *AppError {
	return Wrap("JOB_005", "Transcription failed", http.StatusBadGateway, err)
}

// ---- Sessions (SESS) ----

func ErrSessionNotFound() *AppError {
	return New("SESS_001", "Authorization session not found", http.StatusNotFound)
}

func ErrInvalidTransition(from, step string) *AppError {
	return New("SESS_002", fmt.Sprintf("Step %s is not allowed in state %s", step, from), http.StatusConflict)
}

func ErrStepInProgress() *AppError {
	return New("SESS_003", "Another step is already in progress", http.StatusConflict)
}

func ErrSessionCancelled() *AppError {
	return New("SESS_004", "Authorization session was cancelled", http.StatusConflict)
}

func ErrSessionForbidden() *AppError {
	return New("SESS_005", "Session belongs to another account", http.StatusForbidden)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// ErrOperationFailed is the catch-all with the underlying cause attached.
func ErrOperationFailed(err error) *AppError {
	return Wrap("SYS_000", "Operation failed", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
