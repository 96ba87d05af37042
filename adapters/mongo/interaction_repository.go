package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
)

// InteractionRepository persists the conversation audit log in MongoDB.
type InteractionRepository struct {
	collection *mongo.Collection
}

// NewInteractionRepository creates a new MongoDB interaction repository
func NewInteractionRepository(db *mongo.Database) repositories.InteractionRepository {
	return &InteractionRepository{
		collection: db.Collection("interactions"),
	}
}

// Create implements repositories.InteractionRepository
func (r *InteractionRepository) Create(ctx context.Context, interaction *entities.Interaction) error {
	if interaction == nil {
		return errors.New("interaction cannot be nil")
	}
	if err := interaction.Validate(); err != nil {
		return err
	}
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, interaction); err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

// ListRecent implements repositories.InteractionRepository, newest first.
func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer cursor.Close(ctx)

	var interactions []*entities.Interaction
	if err := cursor.All(ctx, &interactions); err != nil {
		return nil, fmt.Errorf("failed to decode interactions: %w", err)
	}
	return interactions, nil
}
