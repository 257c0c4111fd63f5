package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ErrNotConnected is returned by MongoConnector methods that need a live
// client before Connect has succeeded.
var ErrNotConnected = errors.New("mongo: not connected")

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
}

// DefaultMongoConfig returns defaults for a local MongoDB.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:                    "mongodb://localhost:27017",
		Database:               "crud-express",
		MaxPoolSize:            50,
		ServerSelectionTimeout: 5 * time.Second,
	}
}

// MongoConnector owns a single MongoDB client. The client is created on the
// first Connect call and reused by later calls until Close.
type MongoConnector struct {
	cfg    MongoConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoConnector creates a connector. No connection is made until Connect.
func NewMongoConnector(cfg MongoConfig, logger *slog.Logger) *MongoConnector {
	return &MongoConnector{cfg: cfg, logger: logger}
}

func (c *MongoConnector) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.cfg.URI)
	if c.cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.cfg.MaxPoolSize)
	}
	if c.cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(c.cfg.ServerSelectionTimeout)
	}
	return opts
}

// Connect returns the configured database, creating and pinging the client
// on first use with start-up retries.
func (c *MongoConnector) Connect(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Database(c.cfg.Database), nil
	}

	opts := c.clientOptions()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("parse mongo config: %w", err)
	}

	var client *mongo.Client
	err := connectWithRetry(ctx, c.logger, "mongo", func(ctx context.Context) error {
		cl, err := mongo.Connect(opts)
		if err != nil {
			return err
		}
		if err := cl.Ping(ctx, readpref.Primary()); err != nil {
			_ = cl.Disconnect(context.WithoutCancel(ctx))
			return err
		}
		client = cl
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.client = client
	if c.logger != nil {
		c.logger.Info("connected to mongo", slog.String("database", c.cfg.Database))
	}
	return client.Database(c.cfg.Database), nil
}

// Ping checks the primary is reachable. Used as a readiness check.
func (c *MongoConnector) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	ctx, end := TraceQuery(ctx, SystemMongo, "Ping", "admin.ping")
	err := client.Ping(ctx, readpref.Primary())
	end(err)
	return err
}

// Close disconnects the client. Calling Close without a prior Connect, or
// more than once, is a no-op.
func (c *MongoConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	if err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
