package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// HealthCheck implements ports.HealthChecker for MongoDB.
type HealthCheck struct {
	client Pinger
}

// NewHealthCheck creates a MongoDB health checker.
func NewHealthCheck(client Pinger) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping checks MongoDB connectivity against the primary.
func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Ping(ctx, readpref.Primary())
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "mongodb"
}
