package repository

import (
	"context"
	"time"

	"alcyxob/workout-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
	// ErrConflict is returned when a conditional write matched nothing
	// (stale version, or the row is no longer in the expected state).
	ErrConflict = RepositoryError("write conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Transactor runs fn so that every repository call made with the ctx it receives
// commits or rolls back together.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error
	GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
}

// WorkoutRepository is the read/write side of the workout definition store.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Workout, error)
}

type SessionRepository interface {
	// Create inserts a session. Scheduled sessions are unique per
	// (client, workout, scheduled day); a clash returns ErrDuplicate.
	Create(ctx context.Context, session *domain.WorkoutSession, scheduled bool) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error)
	// FindOnDay returns the sessions of client for workout on a calendar day.
	FindOnDay(ctx context.Context, clientID, workoutID primitive.ObjectID, day string) ([]domain.WorkoutSession, error)
	// ListByClient returns sessions whose scheduled day is within [fromDay, toDay].
	ListByClient(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) ([]domain.WorkoutSession, error)
	// Transition moves a session from one status to another. It returns ErrConflict
	// when the session is not in status from.
	Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, completedAt *time.Time, xpEarned int) error
}

// SetLogKey is the composite identity of a set log.
type SetLogKey struct {
	SessionID         primitive.ObjectID
	WorkoutExerciseID primitive.ObjectID
	SetNumber         int
}

type SetLogRepository interface {
	// Upsert applies patch to the log identified by key. When the log does not exist
	// it is created from seed (name, targets, extra-set flag) before patching.
	// Only fields present in patch are written.
	Upsert(ctx context.Context, key SetLogKey, seed domain.ExerciseSetLog, patch domain.SetLogPatch) (*domain.ExerciseSetLog, error)
	// Insert creates a log; an existing key returns ErrDuplicate.
	Insert(ctx context.Context, log *domain.ExerciseSetLog) error
	Get(ctx context.Context, key SetLogKey) (*domain.ExerciseSetLog, error)
	ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseSetLog, error)
}

type ProfileRepository interface {
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) (*domain.GamificationProfile, error)
	// Save inserts a new profile (zero ID) or replaces the stored one if its
	// version still matches; the version is bumped on success. A stale version
	// or a concurrent insert returns ErrConflict.
	Save(ctx context.Context, profile *domain.GamificationProfile) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Notification, error)
}

type CoachNoteRepository interface {
	Create(ctx context.Context, note *domain.CoachNote) error
	ListByCoach(ctx context.Context, coachID primitive.ObjectID, limit int) ([]domain.CoachNote, error)
}

type HabitRepository interface {
	// Create returns ErrDuplicate when the habit was already logged that day.
	Create(ctx context.Context, log *domain.HabitLog) error
	// CountActiveDays counts distinct days with at least one habit log in [fromDay, toDay].
	CountActiveDays(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) (int, error)
}
