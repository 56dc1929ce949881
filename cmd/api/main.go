package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure-transfer-gateway/config"
	"secure-transfer-gateway/internal/adapter/device"
	httpHandler "secure-transfer-gateway/internal/adapter/http/handler"
	"secure-transfer-gateway/internal/adapter/remote"
	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/internal/service"
	"secure-transfer-gateway/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("STG_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Str("lock", cfg.Lock.Backend).
		Str("voice", cfg.Voice.Mode).
		Msg("Starting Secure Transfer Gateway")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account storage")
	}
	defer store.Close()

	coord, err := openCoordination(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up locking and caches")
	}
	defer coord.Close()

	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	if cfg.Storage.SeedFile != "" {
		seeds, err := loadSeeds(cfg.Storage.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read seed file")
		}
		created, err := seedAccounts(ctx, store.accounts, store.seeder, hashSvc, seeds, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed accounts")
		}
		log.Info().Int("created", created).Int("total", len(seeds)).Msg("Seed accounts loaded")
	}

	auditSvc := service.NewAuditService(store.audit, log)
	executor := service.NewTransferExecutor(
		store.accounts,
		coord.locker,
		coord.receipts,
		auditSvc,
		service.ExecutorConfig{BankTag: cfg.Auth.BankTag},
		log,
	)

	voiceGateway := newVoiceGateway(cfg.Voice, log)
	sessionSvc := service.NewSessionService(
		store.accounts,
		hashSvc,
		voiceGateway,
		executor,
		auditSvc,
		service.SessionConfig{
			Machine:    service.MachineConfig{MaxBiometricAttempts: cfg.Auth.MaxBiometricAttempts},
			SessionTTL: cfg.Auth.SessionTTL,
		},
		log,
	)
	sessionSvc.StartJanitor(time.Minute)
	defer sessionSvc.StopJanitor()

	var transcriptionSvc ports.TranscriptionService
	if cfg.Transcription.APIKey != "" {
		transcriptionSvc = newTranscriptionService(cfg.Transcription, auditSvc, log)
	} else {
		log.Warn().Msg("transcription.api_key not set, voice commands disabled")
	}

	if cfg.Auth.DeviceSecret == "" {
		log.Warn().Msg("auth.device_secret not set, every biometric attestation will be rejected")
	}
	verifier := device.NewVerifier(sigSvc, coord.nonces, cfg.Auth.DeviceSecret, cfg.Auth.AttestationMaxAge, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SessionSvc:       sessionSvc,
		Executor:         executor,
		AccountSvc:       service.NewAccountService(store.accounts),
		TranscriptionSvc: transcriptionSvc,
		Attestation:      verifier,
		TokenSvc:         tokenSvc,
		RateLimitStore:   coord.rateLimit,
		HealthCheckers:   append(store.checkers, coord.checkers...),
		Mode:             cfg.Server.Mode,
		Logger:           log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func newVoiceGateway(cfg config.VoiceConfig, log zerolog.Logger) *remote.VoiceGateway {
	client := remote.NewHTTPClient(cfg.Timeout)

	var jobs *remote.JobClient[remote.VoiceSubmission]
	if cfg.Mode == remote.VoiceModeAsync {
		backend := remote.NewHTTPJobBackend(client, cfg.SubmitURL, cfg.StatusURL)
		jobs = remote.NewJobClient[remote.VoiceSubmission](backend, remote.JobClientConfig{
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.MaxWait,
		}, log)
	}

	return remote.NewVoiceGateway(client, jobs, remote.VoiceGatewayConfig{
		Mode:    cfg.Mode,
		URL:     cfg.URL,
		Timeout: cfg.Timeout,
	}, log)
}

func newTranscriptionService(cfg config.TranscriptionConfig, audit ports.AuditService, log zerolog.Logger) ports.TranscriptionService {
	backend := remote.NewTranscriptionBackend(remote.NewHTTPClient(30*time.Second), cfg.BaseURL, cfg.APIKey)
	jobs := remote.NewJobClient[domain.AudioClip](backend, remote.JobClientConfig{
		PollInterval:  cfg.PollInterval,
		MaxWait:       cfg.MaxWait,
		Strategy:      cfg.Backoff,
		MaxInterval:   cfg.MaxInterval,
		SubmitRetries: cfg.SubmitRetries,
	}, log)
	return service.NewTranscriptionService(remote.NewTranscriber(jobs, log), audit, cfg.Commands, log)
}
