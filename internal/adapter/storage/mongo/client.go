package mongo

import (
	"context"
	"fmt"

	"secure-transfer-gateway/config"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Documents is the subset of *gomongo.Collection the stores use.
type Documents interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *gomongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*gomongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*gomongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// CollectionProvider hands out collections by name.
type CollectionProvider interface {
	Collection(name string) Documents
}

// Provider adapts *gomongo.Client to CollectionProvider for one database.
type Provider struct {
	client   *gomongo.Client
	database string
}

// NewProvider creates a Provider bound to database.
func NewProvider(client *gomongo.Client, database string) *Provider {
	return &Provider{client: client, database: database}
}

// Collection returns the named collection.
func (p *Provider) Collection(name string) Documents {
	return p.client.Database(p.database).Collection(name)
}

// EnsureIndexes creates the unique lookup indexes on the accounts collection.
func (p *Provider) EnsureIndexes(ctx context.Context, accounts string) error {
	coll := p.client.Database(p.database).Collection(accounts)
	_, err := coll.Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{Keys: bson.D{{Key: "accountId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "displayName", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}
	return nil
}

// Connect opens a MongoDB client and verifies connectivity.
func Connect(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (*gomongo.Client, error) {
	client, err := gomongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	log.Info().
		Str("database", cfg.Database).
		Msg("MongoDB connection established")

	return client, nil
}
