// Package memory is an in-process implementation of every repository.
// It backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

// Store holds all collections behind one lock. Transactions hold the lock for
// their whole duration, so they are serialized and isolated; on error the
// collections are restored from the snapshot taken at start.
type Store struct {
	mu sync.Mutex

	users         map[primitive.ObjectID]domain.User
	workouts      map[primitive.ObjectID]domain.Workout
	sessions      map[primitive.ObjectID]domain.WorkoutSession
	scheduled     map[primitive.ObjectID]bool
	setLogs       map[repository.SetLogKey]domain.ExerciseSetLog
	profiles      map[primitive.ObjectID]domain.GamificationProfile // by client
	notifications []domain.Notification
	coachNotes    []domain.CoachNote
	habits        []domain.HabitLog

	// FailNextProfileSave makes the next profile Save fail, for rollback tests.
	FailNextProfileSave error
}

func NewStore() *Store {
	return &Store{
		users:     make(map[primitive.ObjectID]domain.User),
		workouts:  make(map[primitive.ObjectID]domain.Workout),
		sessions:  make(map[primitive.ObjectID]domain.WorkoutSession),
		scheduled: make(map[primitive.ObjectID]bool),
		setLogs:   make(map[repository.SetLogKey]domain.ExerciseSetLog),
		profiles:  make(map[primitive.ObjectID]domain.GamificationProfile),
	}
}

// lock acquires the store lock unless ctx already belongs to a running transaction.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	users         map[primitive.ObjectID]domain.User
	workouts      map[primitive.ObjectID]domain.Workout
	sessions      map[primitive.ObjectID]domain.WorkoutSession
	scheduled     map[primitive.ObjectID]bool
	setLogs       map[repository.SetLogKey]domain.ExerciseSetLog
	profiles      map[primitive.ObjectID]domain.GamificationProfile
	notifications []domain.Notification
	coachNotes    []domain.CoachNote
	habits        []domain.HabitLog
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:         cloneMap(s.users),
		workouts:      cloneMap(s.workouts),
		sessions:      cloneMap(s.sessions),
		scheduled:     cloneMap(s.scheduled),
		setLogs:       cloneMap(s.setLogs),
		profiles:      cloneMap(s.profiles),
		notifications: append([]domain.Notification(nil), s.notifications...),
		coachNotes:    append([]domain.CoachNote(nil), s.coachNotes...),
		habits:        append([]domain.HabitLog(nil), s.habits...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.workouts = snap.workouts
	s.sessions = snap.sessions
	s.scheduled = snap.scheduled
	s.setLogs = snap.setLogs
	s.profiles = snap.profiles
	s.notifications = snap.notifications
	s.coachNotes = snap.coachNotes
	s.habits = snap.habits
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithTransaction implements repository.Transactor.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, s))
}

// Repository views over the shared store.

func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Workouts() repository.WorkoutRepository           { return workoutRepo{s} }
func (s *Store) Sessions() repository.SessionRepository           { return sessionRepo{s} }
func (s *Store) SetLogs() repository.SetLogRepository             { return setLogRepo{s} }
func (s *Store) Profiles() repository.ProfileRepository           { return profileRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) CoachNotes() repository.CoachNoteRepository       { return coachNoteRepo{s} }
func (s *Store) Habits() repository.HabitRepository               { return habitRepo{s} }
