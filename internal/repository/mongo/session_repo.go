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

const sessionCollectionName = "workout_sessions"

// sessionDocument adds the storage-only scheduled flag that backs the
// per-day uniqueness index.
type sessionDocument struct {
	domain.WorkoutSession `bson:",inline"`
	Scheduled             bool `bson:"scheduled"`
}

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.WorkoutSession, scheduled bool) (primitive.ObjectID, error) {
	if session.ClientID.IsZero() || session.WorkoutID.IsZero() {
		return primitive.NilObjectID, errors.New("session requires clientId and workoutId")
	}
	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, sessionDocument{WorkoutSession: *session, Scheduled: scheduled})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			session.ID = primitive.NilObjectID
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return session.ID, nil
}

func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	var session domain.WorkoutSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *mongoSessionRepository) FindOnDay(ctx context.Context, clientID, workoutID primitive.ObjectID, day string) ([]domain.WorkoutSession, error) {
	filter := bson.M{"clientId": clientID, "workoutId": workoutID, "scheduledDay": day}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dateTimeStarted", Value: 1}}))
}

func (r *mongoSessionRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) ([]domain.WorkoutSession, error) {
	filter := bson.M{"clientId": clientID}
	dayRange := bson.M{}
	if fromDay != "" {
		dayRange["$gte"] = fromDay
	}
	if toDay != "" {
		dayRange["$lte"] = toDay
	}
	if len(dayRange) > 0 {
		filter["scheduledDay"] = dayRange
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dateTimeStarted", Value: 1}}))
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.WorkoutSession, error) {
	sessions := []domain.WorkoutSession{}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Transition is a compare-and-set on status, so two racing completions
// cannot both succeed.
func (r *mongoSessionRepository) Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, completedAt *time.Time, xpEarned int) error {
	set := bson.M{
		"status":    to,
		"xpEarned":  xpEarned,
		"updatedAt": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if completedAt != nil {
		set["dateTimeCompleted"] = completedAt.UTC()
	} else {
		update["$unset"] = bson.M{"dateTimeCompleted": ""}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// EnsureSessionIndexes creates the scheduling uniqueness index and lookup indexes.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One scheduled placeholder per client, workout and day. Ad-hoc sessions are exempt.
			Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "workoutId", Value: 1}, {Key: "scheduledDay", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"scheduled": true}).
				SetName("uniq_scheduled_day"),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledDay", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
