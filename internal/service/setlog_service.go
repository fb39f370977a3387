package service

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

const maxExtraSetAttempts = 3

// SetLogService is the set log ledger.
type SetLogService interface {
	// LogSet upserts the set identified by (session, exercise, setNumber), writing
	// only the fields present in patch. Repeating a call is harmless.
	LogSet(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID, setNumber int, patch domain.SetLogPatch) (*domain.ExerciseSetLog, error)
	// AddExtraSet appends a set after both the prescription and every logged set.
	AddExtraSet(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseSetLog, error)
}

type setLogService struct {
	repos      Repositories
	dispatcher *events.Dispatcher
	metrics    *metrics.Manager
}

func NewSetLogService(repos Repositories, dispatcher *events.Dispatcher, metricsManager *metrics.Manager) SetLogService {
	return &setLogService{
		repos:      repos,
		dispatcher: dispatcher,
		metrics:    metricsManager,
	}
}

// writableTarget resolves the session and exercise a set log write goes to.
// Ownership, existence and the terminal-state rule are all checked here, before any write.
func writableTarget(ctx context.Context, repos Repositories, requesterID, sessionID, exerciseID primitive.ObjectID) (*domain.WorkoutSession, *domain.WorkoutExercise, error) {
	session, err := loadOwnedSession(ctx, repos.Sessions, requesterID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}
	workout, err := loadWorkout(ctx, repos.Workouts, session.WorkoutID)
	if err != nil {
		return nil, nil, err
	}
	exercise, ok := workout.FindExercise(exerciseID)
	if !ok {
		return nil, nil, ErrExerciseNotFound
	}
	return session, exercise, nil
}

// seedFor snapshots the prescription for setNumber. Sets past the prescription are extra sets.
func seedFor(exercise *domain.WorkoutExercise, setNumber int) domain.ExerciseSetLog {
	reps, weight := exercise.TargetFor(setNumber)
	return domain.ExerciseSetLog{
		ExerciseName: exercise.Name,
		TargetReps:   reps,
		TargetWeight: weight,
		IsExtraSet:   setNumber > exercise.SetCount(),
	}
}

func (s *setLogService) LogSet(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID, setNumber int, patch domain.SetLogPatch) (_ *domain.ExerciseSetLog, err error) {
	ctx, span := tracer.Start(ctx, "service.setlog.log")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.Int("set.number", setNumber),
	)

	session, exercise, err := writableTarget(ctx, s.repos, requesterID, sessionID, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := checkSetNumber(ctx, s.repos.SetLogs, session.ID, exercise, setNumber); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	key := repository.SetLogKey{SessionID: session.ID, WorkoutExerciseID: exercise.ID, SetNumber: setNumber}
	stored, err := s.repos.SetLogs.Upsert(ctx, key, seedFor(exercise, setNumber), patch)
	if err != nil {
		return nil, fmt.Errorf("upsert set log: %w", err)
	}

	s.metrics.CounterSetsLogged.Inc()
	log.WithFields(log.Fields{
		"session_id":  session.ID.Hex(),
		"exercise_id": exercise.ID.Hex(),
		"set":         setNumber,
		"complete":    stored.IsComplete(),
	}).Debug("set logged")

	// Side effects run before returning; their failures stay in the log.
	s.dispatcher.Publish(ctx, events.TypeSetLogged, events.SetLogged{
		Session: *session,
		Log:     *stored,
		Patch:   patch,
	})
	return stored, nil
}

func (s *setLogService) AddExtraSet(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID) (_ *domain.ExerciseSetLog, err error) {
	ctx, span := tracer.Start(ctx, "service.setlog.addExtraSet")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("session.id", sessionID.Hex()))

	session, exercise, err := writableTarget(ctx, s.repos, requesterID, sessionID, exerciseID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxExtraSetAttempts; attempt++ {
		logs, err := s.repos.SetLogs.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("list set logs: %w", err)
		}

		extra := nextExtraSet(exercise, logs)
		extra.SessionID = session.ID
		extra.WorkoutExerciseID = exercise.ID

		err = s.repos.SetLogs.Insert(ctx, &extra)
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent add took this number
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert extra set: %w", err)
		}

		s.metrics.CounterExtraSets.Inc()
		log.WithFields(log.Fields{
			"session_id":  session.ID.Hex(),
			"exercise_id": exercise.ID.Hex(),
			"set":         extra.SetNumber,
		}).Info("extra set added")

		s.dispatcher.Publish(ctx, events.TypeSetLogged, events.SetLogged{
			Session: *session,
			Log:     extra,
		})
		return &extra, nil
	}
	return nil, fmt.Errorf("add extra set: gave up after %d concurrent attempts", maxExtraSetAttempts)
}

// checkSetNumber accepts prescribed sets and sets that already have a row.
// New sets past the prescription only come from AddExtraSet.
func checkSetNumber(ctx context.Context, setLogs repository.SetLogRepository, sessionID primitive.ObjectID, exercise *domain.WorkoutExercise, setNumber int) error {
	if setNumber < 1 {
		return validationErr("set number must be at least 1, got %d", setNumber)
	}
	if setNumber <= exercise.SetCount() {
		return nil
	}
	logs, err := setLogs.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list set logs: %w", err)
	}
	for i := range logs {
		if logs[i].WorkoutExerciseID == exercise.ID && logs[i].SetNumber >= setNumber {
			return nil
		}
	}
	return validationErr("set %d of %s does not exist, add an extra set first", setNumber, exercise.Name)
}

// nextExtraSet numbers the new set after the highest logged or prescribed set and
// copies targets from the set right before it, logged or prescribed.
func nextExtraSet(exercise *domain.WorkoutExercise, logs []domain.ExerciseSetLog) domain.ExerciseSetLog {
	byNumber := make(map[int]*domain.ExerciseSetLog)
	next := exercise.SetCount() + 1
	for i := range logs {
		if logs[i].WorkoutExerciseID != exercise.ID {
			continue
		}
		byNumber[logs[i].SetNumber] = &logs[i]
		if logs[i].SetNumber >= next {
			next = logs[i].SetNumber + 1
		}
	}

	extra := domain.ExerciseSetLog{
		SetNumber:    next,
		ExerciseName: exercise.Name,
		IsExtraSet:   true,
	}
	if prev, ok := byNumber[next-1]; ok {
		extra.TargetReps = prev.TargetReps
		if prev.TargetWeight != nil {
			w := *prev.TargetWeight
			extra.TargetWeight = &w
		}
	} else if next > 1 {
		extra.TargetReps, extra.TargetWeight = exercise.TargetFor(next - 1)
	}
	return extra
}
