package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSetLogUpsert_ConcurrentSameKeySingleRow(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	key := repository.SetLogKey{SessionID: primitive.NewObjectID(), WorkoutExerciseID: primitive.NewObjectID(), SetNumber: 1}
	seed := domain.ExerciseSetLog{ExerciseName: "Squat", TargetReps: 5}

	reps, weight := 5, 100.0
	feeling := domain.FeelingHard

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := s.SetLogs().Upsert(ctx, key, seed, domain.SetLogPatch{ActualReps: &reps})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.SetLogs().Upsert(ctx, key, seed, domain.SetLogPatch{ActualWeight: &weight})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.SetLogs().Upsert(ctx, key, seed, domain.SetLogPatch{FeelingCode: &feeling})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logs, err := s.SetLogs().ListBySession(ctx, key.SessionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsComplete(), "no field update may be lost")
	assert.Equal(t, "Squat", logs[0].ExerciseName)
}

func TestSessionCreate_ScheduledUniquePerDay(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	clientID, workoutID := primitive.NewObjectID(), primitive.NewObjectID()

	newSession := func() *domain.WorkoutSession {
		return &domain.WorkoutSession{ClientID: clientID, WorkoutID: workoutID, ScheduledDay: "2026-03-02", Status: domain.SessionInProgress}
	}

	_, err := s.Sessions().Create(ctx, newSession(), true)
	require.NoError(t, err)
	_, err = s.Sessions().Create(ctx, newSession(), true)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = s.Sessions().Create(ctx, newSession(), false)
	assert.NoError(t, err, "ad-hoc sessions are not constrained")
}

func TestSessionTransition_ConditionalOnStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	sess := &domain.WorkoutSession{ClientID: primitive.NewObjectID(), Status: domain.SessionInProgress}
	id, err := s.Sessions().Create(ctx, sess, false)
	require.NoError(t, err)

	require.NoError(t, s.Sessions().Transition(ctx, id, domain.SessionInProgress, domain.SessionAbandoned, nil, 0))
	err = s.Sessions().Transition(ctx, id, domain.SessionInProgress, domain.SessionCompleted, nil, 0)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	clientID := primitive.NewObjectID()

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		p := domain.NewGamificationProfile(clientID)
		p.XP = 500
		require.NoError(t, s.Profiles().Save(ctx, p))
		require.NoError(t, s.Notifications().Create(ctx, &domain.Notification{RecipientID: clientID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Profiles().GetByClientID(ctx, clientID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	notes, err := s.Notifications().ListByRecipient(ctx, clientID, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestProfileSave_OptimisticVersion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	clientID := primitive.NewObjectID()

	p := domain.NewGamificationProfile(clientID)
	require.NoError(t, s.Profiles().Save(ctx, p))

	a, err := s.Profiles().GetByClientID(ctx, clientID)
	require.NoError(t, err)
	b, err := s.Profiles().GetByClientID(ctx, clientID)
	require.NoError(t, err)

	a.XP = 10
	require.NoError(t, s.Profiles().Save(ctx, a))
	b.XP = 20
	assert.ErrorIs(t, s.Profiles().Save(ctx, b), repository.ErrConflict)

	dup := domain.NewGamificationProfile(clientID)
	assert.ErrorIs(t, s.Profiles().Save(ctx, dup), repository.ErrConflict)
}

func TestHabitCountActiveDays(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	clientID := primitive.NewObjectID()

	for _, h := range []domain.HabitLog{
		{ClientID: clientID, Habit: "water", Day: "2026-03-01"},
		{ClientID: clientID, Habit: "sleep", Day: "2026-03-01"},
		{ClientID: clientID, Habit: "water", Day: "2026-03-03"},
		{ClientID: clientID, Habit: "water", Day: "2026-03-09"},
	} {
		h := h
		require.NoError(t, s.Habits().Create(ctx, &h))
	}
	dup := domain.HabitLog{ClientID: clientID, Habit: "water", Day: "2026-03-01"}
	assert.ErrorIs(t, s.Habits().Create(ctx, &dup), repository.ErrDuplicate)

	n, err := s.Habits().CountActiveDays(ctx, clientID, "2026-03-01", "2026-03-07")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
