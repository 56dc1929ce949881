package service

import (
	"context"
	"encoding/json"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *auditService) Log(_ context.Context, entry ports.AuditEntry) {
	record := &domain.AuditLog{
		ID:        uuid.New(),
		AccountID: entry.AccountID,
		SessionID: entry.SessionID,
		Action:    entry.Action,
		IPAddress: entry.IPAddress,
		CreatedAt: time.Now().UTC(),
	}
	if len(entry.Details) > 0 {
		if b, err := json.Marshal(entry.Details); err == nil {
			record.Details = string(b)
		}
	}

	go func() {
		s.log.Info().
			Str("action", string(record.Action)).
			Str("account_id", record.AccountID).
			Str("session_id", record.SessionID).
			Str("ip", record.IPAddress).
			RawJSON("details", detailsJSON(record.Details)).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), record); err != nil {
				s.log.Warn().Err(err).Str("action", string(record.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}

func detailsJSON(details string) []byte {
	if details == "" {
		return []byte("{}")
	}
	return []byte(details)
}
