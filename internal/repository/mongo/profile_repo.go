package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCollectionName = "gamification_profiles"

// mongoProfileRepository implements repository.ProfileRepository with optimistic versioning.
type mongoProfileRepository struct {
	collection *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

func (r *mongoProfileRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) (*domain.GamificationProfile, error) {
	var profile domain.GamificationProfile
	err := r.collection.FindOne(ctx, bson.M{"clientId": clientID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if profile.Badges == nil {
		profile.Badges = []string{}
	}
	return &profile, nil
}

func (r *mongoProfileRepository) Save(ctx context.Context, profile *domain.GamificationProfile) error {
	next := *profile
	next.Version = profile.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if profile.ID.IsZero() {
		next.ID = primitive.NewObjectID()
		if _, err := r.collection.InsertOne(ctx, next); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return repository.ErrConflict
			}
			return err
		}
		*profile = next
		return nil
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": profile.ID, "version": profile.Version}, next)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	*profile = next
	return nil
}

// EnsureProfileIndexes makes clientId unique so two lazy creations cannot both win.
func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
