package store_test

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/database"
)

func startMongo(ctx context.Context) (testcontainers.Container, *mongo.Client, error) {
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb.Run: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return container, nil, fmt.Errorf("container.ConnectionString: %w", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return container, nil, fmt.Errorf("mongo.Connect: %w", err)
	}

	return container, client, nil
}

func prepareDatabase(client *mongo.Client, name string) (*mongo.Database, error) {
	db := client.Database(name)
	if err := database.EnsureIndexes(db); err != nil {
		return nil, err
	}
	return db, nil
}
