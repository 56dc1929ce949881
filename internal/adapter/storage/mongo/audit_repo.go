package mongo

import (
	"context"
	"fmt"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"go.mongodb.org/mongo-driver/bson"
)

// AuditCollection holds one document per audit entry.
const AuditCollection = "audit_logs"

type auditRepo struct {
	provider CollectionProvider
}

// NewAuditRepository creates a MongoDB-backed AuditRepository.
func NewAuditRepository(provider CollectionProvider) ports.AuditRepository {
	return &auditRepo{provider: provider}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	doc := bson.M{
		"_id":       log.ID.String(),
		"accountId": log.AccountID,
		"sessionId": log.SessionID,
		"action":    string(log.Action),
		"ipAddress": log.IPAddress,
		"createdAt": log.CreatedAt.UTC().Truncate(time.Millisecond),
	}
	if log.Details != "" {
		var details bson.M
		if err := bson.UnmarshalExtJSON([]byte(log.Details), false, &details); err == nil {
			doc["details"] = details
		} else {
			doc["details"] = log.Details
		}
	}
	if _, err := r.provider.Collection(AuditCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
