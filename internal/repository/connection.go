package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures the MongoDB client. Zero values fall back to the defaults below.
type MongoOptions struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	MaxPoolSize            uint64
}

const (
	defaultMongoConnectTimeout         = 10 * time.Second
	defaultMongoServerSelectionTimeout = 5 * time.Second
	defaultMongoMaxPoolSize            = 10
)

func (o MongoOptions) clientOptions() *options.ClientOptions {
	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultMongoConnectTimeout
	}
	selectionTimeout := o.ServerSelectionTimeout
	if selectionTimeout <= 0 {
		selectionTimeout = defaultMongoServerSelectionTimeout
	}
	poolSize := o.MaxPoolSize
	if poolSize == 0 {
		poolSize = defaultMongoMaxPoolSize
	}

	return options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(selectionTimeout).
		SetMaxPoolSize(poolSize)
}

func ConnectMongoDB(ctx context.Context, opts MongoOptions) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, opts.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(opts.Database), nil
}
