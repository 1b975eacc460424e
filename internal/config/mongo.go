package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoConnectTimeout = 10 * time.Second

// ConnectMongoDB dials the durable document store, verifies the primary is
// reachable and ensures the collection's indexes. The client is closed on
// any failure, so a nil client means the caller should use memory.
func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(cfg.ServiceName).
		SetServerSelectionTimeout(mongoConnectTimeout).
		SetMaxPoolSize(uint64(max(cfg.WorkerPoolSize*2, 10)))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	if err := ensureDocumentIndexes(ctx, client.Database(cfg.DBName).Collection(cfg.MongoCollection)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes on %s: %w", cfg.MongoCollection, err)
	}

	return client, nil
}

// ensureDocumentIndexes keeps one record per filename and lets listings
// sort by upload time.
func ensureDocumentIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("filename_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	})
	return err
}
