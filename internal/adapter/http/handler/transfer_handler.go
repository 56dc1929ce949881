package handler

import (
	"secure-transfer-gateway/internal/adapter/device"
	"secure-transfer-gateway/internal/adapter/http/dto"
	"secure-transfer-gateway/internal/adapter/http/middleware"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"
	"secure-transfer-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AttestationVerifier turns a device attestation into a biometric capability.
type AttestationVerifier interface {
	Capability(a device.Attestation) ports.BiometricCapability
}

// TransferHandler handles transfer session and ledger endpoints.
type TransferHandler struct {
	sessions ports.SessionService
	executor ports.TransferExecutor
	verifier AttestationVerifier
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(sessions ports.SessionService, executor ports.TransferExecutor, verifier AttestationVerifier) *TransferHandler {
	return &TransferHandler{
		sessions: sessions,
		executor: executor,
		verifier: verifier,
	}
}

// StartSession handles POST /api/v1/transfers/sessions.
func (h *TransferHandler) StartSession(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), ports.StartTransferRequest{
		SenderID:    callerID,
		RecipientID: req.RecipientID,
		Amount:      amount,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// GetSession handles GET /api/v1/transfers/sessions/:id.
func (h *TransferHandler) GetSession(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// SubmitPin handles POST /api/v1/transfers/sessions/:id/pin.
func (h *TransferHandler) SubmitPin(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubmitPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("pin must be 4-12 digits"))
		return
	}

	session, err := h.sessions.SubmitPin(c.Request.Context(), callerID, c.Param("id"), req.PIN)
	if err != nil {
		response.ErrorWithDetails(c, err, session)
		return
	}
	response.OK(c, session)
}

// RequestBiometric handles POST /api/v1/transfers/sessions/:id/biometric.
func (h *TransferHandler) RequestBiometric(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BiometricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	capability := h.verifier.Capability(device.Attestation{
		DeviceID:    req.DeviceID,
		HasHardware: req.HasHardware,
		Enrolled:    req.Enrolled,
		Passed:      req.Passed,
		Timestamp:   req.Timestamp,
		Nonce:       req.Nonce,
		Signature:   req.Signature,
	})

	session, err := h.sessions.RequestBiometric(c.Request.Context(), callerID, c.Param("id"), capability)
	if err != nil {
		response.ErrorWithDetails(c, err, session)
		return
	}
	response.OK(c, session)
}

// RequestVoice handles POST /api/v1/transfers/sessions/:id/voice. On success
// the transfer has been committed and its receipt is returned with the session.
func (h *TransferHandler) RequestVoice(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	clip, err := readClip(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.sessions.RequestVoice(c.Request.Context(), callerID, c.Param("id"), clip)
	if err != nil {
		if result != nil {
			response.ErrorWithDetails(c, err, voiceStepView(result, callerID))
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, voiceStepView(result, callerID))
}

// CommitSession handles POST /api/v1/transfers/sessions/:id/commit. It
// retries the transfer of an Authorized session whose first attempt failed.
func (h *TransferHandler) CommitSession(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.sessions.Commit(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		if result != nil {
			response.ErrorWithDetails(c, err, voiceStepView(result, callerID))
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, voiceStepView(result, callerID))
}

// CancelSession handles POST /api/v1/transfers/sessions/:id/cancel.
func (h *TransferHandler) CancelSession(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	session, err := h.sessions.Cancel(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Resume handles POST /api/v1/transfers/:transfer_id/resume. Only the sender
// can finish a partially committed transfer.
func (h *TransferHandler) Resume(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.executor.Resume(c.Request.Context(), callerID, c.Param("transfer_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewReceiptResponse(result, callerID))
}

// Receipt handles GET /api/v1/transfers/:transfer_id/receipt.
func (h *TransferHandler) Receipt(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.executor.Receipt(c.Request.Context(), c.Param("transfer_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.SenderID != callerID && result.RecipientID != callerID {
		response.Error(c, apperror.ErrTransferNotFound())
		return
	}
	response.OK(c, dto.NewReceiptResponse(result, callerID))
}

func voiceStepView(r *ports.VoiceStepResult, callerID string) dto.VoiceStepResponse {
	return dto.VoiceStepResponse{
		Session:  r.Session,
		Transfer: dto.NewReceiptResponse(r.Transfer, callerID),
	}
}
