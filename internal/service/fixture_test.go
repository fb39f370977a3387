package service

import (
	"context"
	"testing"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixture wires every engine service over one in-memory store with a fixed clock.
type fixture struct {
	ctx        context.Context
	store      *memory.Store
	repos      Repositories
	dispatcher *events.Dispatcher
	metrics    *metrics.Manager
	settings   Settings
	now        time.Time

	coach   domain.User
	client  domain.User
	workout *domain.Workout

	coaches      CoachService
	scoring      *ScoringEngine
	sessions     SessionService
	setLogs      SetLogService
	gamification GamificationService
	scheduler    SchedulerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		ctx:        context.Background(),
		store:      store,
		dispatcher: events.NewDispatcher(),
		metrics:    metrics.NewTestManager(),
		// a Monday
		now: time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC),
	}
	f.repos = Repositories{
		Users:         store.Users(),
		Workouts:      store.Workouts(),
		Sessions:      store.Sessions(),
		SetLogs:       store.SetLogs(),
		Profiles:      store.Profiles(),
		Notifications: store.Notifications(),
		CoachNotes:    store.CoachNotes(),
		Habits:        store.Habits(),
		Tx:            store,
	}
	f.settings = Settings{
		BaseXP:          50,
		ExerciseBonusXP: 10,
		ScheduleHour:    9,
		Location:        time.UTC,
		Now:             func() time.Time { return f.now },
	}

	notifications := NewNotificationSink(f.repos.Notifications)
	NewPainHook(f.repos.Workouts, notifications, NewCoachNoteSink(f.repos.CoachNotes), f.metrics).Register(f.dispatcher)
	NewScoreNotifier(notifications, f.metrics).Register(f.dispatcher)

	f.coaches = NewCoachService(f.repos.Users, f.repos.Workouts)
	f.scoring = NewScoringEngine(f.repos.Profiles, f.settings)
	f.sessions = NewSessionService(f.repos, f.scoring, f.dispatcher, f.metrics, f.settings)
	f.setLogs = NewSetLogService(f.repos, f.dispatcher, f.metrics)
	f.gamification = NewGamificationService(f.repos, f.scoring, f.dispatcher, f.settings)
	f.scheduler = NewSchedulerService(f.repos, notifications, f.dispatcher, f.metrics, f.settings)

	f.coach = f.createUser(t, "Coach Carter", "coach@example.com", domain.RoleCoach)
	f.client = f.createUser(t, "Casey Client", "client@example.com", domain.RoleClient)
	_, err := f.coaches.AddClientByEmail(f.ctx, f.coach.ID, f.client.Email)
	require.NoError(t, err)
	f.client.CoachID = &f.coach.ID

	f.workout = f.createWorkout(t, f.coach.ID)
	return f
}

func (f *fixture) createUser(t *testing.T, name, email string, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{Name: name, Email: email, Role: role}
	_, err := f.repos.Users.Create(f.ctx, &u)
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

// createWorkout stores a two-exercise workout: squat 3 sets [8,8,6]@[60,65,70] and a 1-set plank.
func (f *fixture) createWorkout(t *testing.T, coachID primitive.ObjectID) *domain.Workout {
	t.Helper()
	w, err := f.coaches.CreateWorkout(f.ctx, coachID, &domain.Workout{
		Name: "Lower body A",
		Sections: []domain.Section{{
			Name: "Main",
			Blocks: []domain.Block{{
				Type: domain.BlockStandardSetsReps,
				Exercises: []domain.WorkoutExercise{
					{
						Name:              "Back squat",
						TargetRepsBySet:   []int{8, 8, 6},
						TargetWeightBySet: []*float64{ptr(60.0), ptr(65.0), ptr(70.0)},
						TargetRestBySet:   []int{90, 90, 120},
					},
					{
						Name:            "Plank",
						TargetRepsBySet: []int{1},
					},
				},
			}},
		}},
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) squat() *domain.WorkoutExercise {
	return &f.workout.Sections[0].Blocks[0].Exercises[0]
}

func (f *fixture) plank() *domain.WorkoutExercise {
	return &f.workout.Sections[0].Blocks[0].Exercises[1]
}

func (f *fixture) startSession(t *testing.T) domain.WorkoutSession {
	t.Helper()
	view, err := f.sessions.StartAdHocSession(f.ctx, f.client.ID, f.workout.ID)
	require.NoError(t, err)
	return view.Session
}

func completePatch(reps int, weight float64, feeling domain.FeelingCode) domain.SetLogPatch {
	return domain.SetLogPatch{ActualReps: &reps, ActualWeight: &weight, FeelingCode: &feeling}
}

func (f *fixture) profile(t *testing.T) *domain.GamificationProfile {
	t.Helper()
	p, err := f.scoring.Load(f.ctx, f.client.ID)
	require.NoError(t, err)
	return p
}
