package handler

import (
	"secure-transfer-gateway/internal/adapter/http/middleware"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"
	"secure-transfer-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// VoiceCommandHandler runs uploaded speech through the transcription pipeline.
type VoiceCommandHandler struct {
	transcription ports.TranscriptionService
}

// NewVoiceCommandHandler creates a new VoiceCommandHandler.
func NewVoiceCommandHandler(transcription ports.TranscriptionService) *VoiceCommandHandler {
	return &VoiceCommandHandler{transcription: transcription}
}

// Process handles POST /api/v1/voice-commands.
func (h *VoiceCommandHandler) Process(c *gin.Context) {
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

	result, err := h.transcription.ProcessCommand(c.Request.Context(), callerID, clip)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
