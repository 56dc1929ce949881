package handler

import (
	"secure-transfer-gateway/internal/adapter/http/middleware"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SessionSvc       ports.SessionService
	Executor         ports.TransferExecutor
	AccountSvc       ports.AccountService
	TranscriptionSvc ports.TranscriptionService // nil = voice commands disabled
	Attestation      AttestationVerifier
	TokenSvc         ports.TokenService
	RateLimitStore   middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	Mode             string
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(MaxAudioBytes + 1<<20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Rate limiter for group, or a no-op when no store is configured.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	transferHandler := NewTransferHandler(deps.SessionSvc, deps.Executor, deps.Attestation)
	transfers := v1.Group("/transfers")
	{
		sessions := transfers.Group("/sessions")
		sessions.POST("", rl("sessions"), transferHandler.StartSession)
		sessions.GET("/:id", transferHandler.GetSession)
		sessions.POST("/:id/pin", rl("pin"), transferHandler.SubmitPin)
		sessions.POST("/:id/biometric", transferHandler.RequestBiometric)
		sessions.POST("/:id/voice", rl("voice"), transferHandler.RequestVoice)
		sessions.POST("/:id/commit", transferHandler.CommitSession)
		sessions.POST("/:id/cancel", transferHandler.CancelSession)

		transfers.POST("/:transfer_id/resume", transferHandler.Resume)
		transfers.GET("/:transfer_id/receipt", transferHandler.Receipt)
	}

	accountHandler := NewAccountHandler(deps.AccountSvc)
	v1.GET("/accounts/me", rl("accounts"), accountHandler.GetMe)

	if deps.TranscriptionSvc != nil {
		voiceHandler := NewVoiceCommandHandler(deps.TranscriptionSvc)
		v1.POST("/voice-commands", rl("voice_commands"), voiceHandler.Process)
	}

	return r
}
