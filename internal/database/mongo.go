package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"galleryapi/internal/config"
)

const connectTimeout = 15 * time.Second

// MongoPinger adapts a client to the health check contract.
type MongoPinger struct {
	Client *mongo.Client
}

// PingContext checks the primary is reachable.
func (p MongoPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx, nil)
}

// NewMongo connects to MongoDB and returns the client together with the
// media collection. The caller disconnects the client on shutdown.
func NewMongo(ctx context.Context, c config.MongoConfig, log *zap.Logger) (*mongo.Client, *mongo.Collection, error) {
	if c.URI == "" || c.Database == "" || c.Collection == "" {
		return nil, nil, fmt.Errorf("mongo config: MONGO_URI, MONGO_DATABASE and MONGO_COLLECTION are required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info("mongo connected",
		zap.String("database", c.Database),
		zap.String("collection", c.Collection),
	)
	return client, client.Database(c.Database).Collection(c.Collection), nil
}
