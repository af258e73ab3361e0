package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type sequenceRepository struct {
	coll *mongo.Collection
}

func NewSequences(db *mongo.Database) port.SequenceRepository {
	return &sequenceRepository{coll: db.Collection("email_sequences")}
}

func (r *sequenceRepository) GetSequence(ctx context.Context, key string) (models.EmailSequence, error) {
	seq, err := findOne[models.EmailSequence](ctx, r.coll, bson.M{"_id": key})
	if err != nil {
		return seq, fmt.Errorf("email_sequences.FindOne: %w", err)
	}
	return seq, nil
}

func (r *sequenceRepository) PutSequence(ctx context.Context, sequence models.EmailSequence) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": sequence.Key}, sequence, opts); err != nil {
		return fmt.Errorf("email_sequences.ReplaceOne: %w", err)
	}
	return nil
}
