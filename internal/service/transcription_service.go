package service

import (
	"context"
	"errors"
	"strings"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// DefaultCommands are the phrases recognised when none are configured.
var DefaultCommands = []string{"login"}

type transcriptionService struct {
	transcriber ports.Transcriber
	audit       ports.AuditService
	commands    []string
	log         zerolog.Logger
}

// NewTranscriptionService creates the spoken-command pipeline. audit may be nil.
func NewTranscriptionService(transcriber ports.Transcriber, audit ports.AuditService, commands []string, log zerolog.Logger) ports.TranscriptionService {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	return &transcriptionService{
		transcriber: transcriber,
		audit:       audit,
		commands:    commands,
		log:         log,
	}
}

// Transcribe returns the text of clip. A job the provider marks failed is
// reported as TranscriptionFailed.
func (s *transcriptionService) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	text, err := s.transcriber.Transcribe(ctx, clip)
	if err != nil {
		if errors.Is(err, apperror.ErrJobFailed("")) {
			return "", apperror.ErrTranscriptionFailed(err)
		}
		return "", err
	}
	return text, nil
}

// ProcessCommand transcribes clip and reports which configured commands the
// transcript contains. Nothing is triggered when transcription fails.
func (s *transcriptionService) ProcessCommand(ctx context.Context, accountID string, clip domain.AudioClip) (*domain.CommandResult, error) {
	text, err := s.Transcribe(ctx, clip)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("voice command transcription failed")
		return nil, err
	}

	result := &domain.CommandResult{Transcript: text, Matched: matchCommands(text, s.commands)}
	s.log.Info().Str("account_id", accountID).Strs("matched", result.Matched).Msg("voice command processed")

	if s.audit != nil {
		s.audit.Log(ctx, ports.AuditEntry{
			AccountID: accountID,
			Action:    domain.AuditActionVoiceCommand,
			Details:   map[string]any{"matched": result.Matched},
		})
	}
	return result, nil
}

// matchCommands applies a case-insensitive substring match.
func matchCommands(text string, commands []string) []string {
	lower := strings.ToLower(text)
	matched := []string{}
	for _, c := range commands {
		if c != "" && strings.Contains(lower, strings.ToLower(c)) {
			matched = append(matched, c)
		}
	}
	return matched
}
