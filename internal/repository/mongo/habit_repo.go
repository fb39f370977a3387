package mongo

import (
	"context"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const habitCollectionName = "habit_logs"

type mongoHabitRepository struct {
	collection *mongo.Collection
}

func NewMongoHabitRepository(db *mongo.Database) repository.HabitRepository {
	return &mongoHabitRepository{collection: db.Collection(habitCollectionName)}
}

func (r *mongoHabitRepository) Create(ctx context.Context, log *domain.HabitLog) error {
	log.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, log); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoHabitRepository) CountActiveDays(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) (int, error) {
	filter := bson.M{
		"clientId": clientID,
		"day":      bson.M{"$gte": fromDay, "$lte": toDay},
	}
	days, err := r.collection.Distinct(ctx, "day", filter)
	if err != nil {
		return 0, err
	}
	return len(days), nil
}

func EnsureHabitIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "day", Value: 1}, {Key: "habit", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
