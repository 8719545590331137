package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	appName        = "personal-coach"
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Connection is a connected client bound to the application database.
type Connection struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Open connects to uri, verifies the primary is reachable and selects the
// database called name.
func Open(ctx context.Context, uri, name string) (*Connection, error) {
	if name == "" {
		return nil, fmt.Errorf("mongo: database name is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetAppName(appName).
		SetServerSelectionTimeout(connectTimeout).
		SetRetryWrites(true)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping primary: %w", err)
	}

	return &Connection{Client: client, DB: client.Database(name)}, nil
}

// Close disconnects the client, waiting at most connectTimeout for
// in-flight operations.
func (c *Connection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return c.Client.Disconnect(ctx)
}
