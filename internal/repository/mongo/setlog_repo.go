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

const setLogCollectionName = "exercise_set_logs"

// mongoSetLogRepository implements repository.SetLogRepository
type mongoSetLogRepository struct {
	collection *mongo.Collection
}

func NewMongoSetLogRepository(db *mongo.Database) repository.SetLogRepository {
	return &mongoSetLogRepository{
		collection: db.Collection(setLogCollectionName),
	}
}

func keyFilter(key repository.SetLogKey) bson.M {
	return bson.M{
		"sessionId":         key.SessionID,
		"workoutExerciseId": key.WorkoutExerciseID,
		"setNumber":         key.SetNumber,
	}
}

// patchFields converts the supplied patch fields to a $set document.
func patchFields(patch domain.SetLogPatch) bson.M {
	set := bson.M{}
	if patch.ActualReps != nil {
		set["actualReps"] = *patch.ActualReps
	}
	if patch.ActualWeight != nil {
		set["actualWeight"] = *patch.ActualWeight
	}
	if patch.FeelingCode != nil {
		set["feelingCode"] = *patch.FeelingCode
	}
	if patch.FeelingEmoji != nil {
		set["feelingEmoji"] = *patch.FeelingEmoji
	}
	if patch.FeelingNote != nil {
		set["feelingNote"] = *patch.FeelingNote
	}
	if patch.VideoKey != nil {
		set["videoKey"] = *patch.VideoKey
	}
	return set
}

// Upsert writes only the supplied fields in one atomic findAndModify. Concurrent
// first writes for the same key race on the unique index; the loser retries
// once and then finds the winner's document.
func (r *mongoSetLogRepository) Upsert(ctx context.Context, key repository.SetLogKey, seed domain.ExerciseSetLog, patch domain.SetLogPatch) (*domain.ExerciseSetLog, error) {
	now := time.Now().UTC()
	set := patchFields(patch)
	set["updatedAt"] = now

	onInsert := bson.M{
		"exerciseName": seed.ExerciseName,
		"targetReps":   seed.TargetReps,
		"isExtraSet":   seed.IsExtraSet,
		"createdAt":    now,
	}
	if seed.TargetWeight != nil {
		onInsert["targetWeight"] = *seed.TargetWeight
	}

	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var log domain.ExerciseSetLog
	err := r.collection.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&log)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&log)
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *mongoSetLogRepository) Insert(ctx context.Context, log *domain.ExerciseSetLog) error {
	log.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, log); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoSetLogRepository) Get(ctx context.Context, key repository.SetLogKey) (*domain.ExerciseSetLog, error) {
	var log domain.ExerciseSetLog
	err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *mongoSetLogRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseSetLog, error) {
	logs := []domain.ExerciseSetLog{}
	findOptions := options.Find().SetSort(bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "setNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureSetLogIndexes creates the composite identity index.
func EnsureSetLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "workoutExerciseId", Value: 1}, {Key: "setNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_session_exercise_set"),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
