package handler

import (
	"secure-transfer-gateway/internal/adapter/http/dto"
	"secure-transfer-gateway/internal/adapter/http/middleware"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"
	"secure-transfer-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// GetMe handles GET /api/v1/accounts/me.
func (h *AccountHandler) GetMe(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}
