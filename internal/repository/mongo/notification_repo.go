package mongo

import (
	"context"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	notificationCollectionName = "notifications"
	coachNoteCollectionName    = "coach_notes"
)

// Both collections are append-only.

type mongoNotificationRepository struct {
	collection *mongo.Collection
}

func NewMongoNotificationRepository(db *mongo.Database) repository.NotificationRepository {
	return &mongoNotificationRepository{collection: db.Collection(notificationCollectionName)}
}

func (r *mongoNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *mongoNotificationRepository) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Notification, error) {
	out := []domain.Notification{}
	if err := findNewest(ctx, r.collection, bson.M{"recipientId": recipientID}, limit, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type mongoCoachNoteRepository struct {
	collection *mongo.Collection
}

func NewMongoCoachNoteRepository(db *mongo.Database) repository.CoachNoteRepository {
	return &mongoCoachNoteRepository{collection: db.Collection(coachNoteCollectionName)}
}

func (r *mongoCoachNoteRepository) Create(ctx context.Context, note *domain.CoachNote) error {
	note.ID = primitive.NewObjectID()
	note.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, note)
	return err
}

func (r *mongoCoachNoteRepository) ListByCoach(ctx context.Context, coachID primitive.ObjectID, limit int) ([]domain.CoachNote, error) {
	out := []domain.CoachNote{}
	if err := findNewest(ctx, r.collection, bson.M{"coachId": coachID}, limit, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findNewest(ctx context.Context, collection *mongo.Collection, filter bson.M, limit int, results interface{}) error {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}

func EnsureNotificationIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func EnsureCoachNoteIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
