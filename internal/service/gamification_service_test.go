package service

import (
	"context"
	"testing"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLogHabit_IdempotentPerDay(t *testing.T) {
	f := newFixture(t)

	first, err := f.gamification.LogHabit(f.ctx, f.client.ID, " Water ", time.Time{})
	require.NoError(t, err)
	assert.True(t, first.Counted)
	assert.Equal(t, "2026-03-02", first.Day)
	assert.Equal(t, 1, first.Profile.TotalHabits)
	assert.Equal(t, 1, first.Profile.StreakDays)

	again, err := f.gamification.LogHabit(f.ctx, f.client.ID, "water", f.now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, again.Counted)
	assert.Equal(t, 1, again.Profile.TotalHabits)

	other, err := f.gamification.LogHabit(f.ctx, f.client.ID, "sleep", time.Time{})
	require.NoError(t, err)
	assert.True(t, other.Counted)
	assert.Equal(t, 2, other.Profile.TotalHabits)
	assert.Equal(t, 1, other.Profile.StreakDays, "a second activity on the same day does not extend the streak")
}

func TestLogHabit_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.gamification.LogHabit(f.ctx, f.client.ID, "  ", time.Time{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.gamification.LogHabit(f.ctx, f.client.ID, "water", f.now.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogHabit_ExtendsStreakAcrossDays(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.gamification.LogHabit(f.ctx, f.client.ID, "stretch", time.Time{})
		require.NoError(t, err)
		f.now = f.now.Add(24 * time.Hour)
	}
	p := f.profile(t)
	assert.Equal(t, 3, p.StreakDays)
	assert.Equal(t, 3, p.BestStreak)

	// skipping a day restarts at one, best streak stays
	f.now = f.now.Add(24 * time.Hour)
	_, err := f.gamification.LogHabit(f.ctx, f.client.ID, "stretch", time.Time{})
	require.NoError(t, err)
	p = f.profile(t)
	assert.Equal(t, 1, p.StreakDays)
	assert.Equal(t, 3, p.BestStreak)
}

func TestLogHabit_PublishesScore(t *testing.T) {
	f := newFixture(t)
	var got []events.ProfileScored
	f.dispatcher.Subscribe(events.TypeProfileScored, "recorder", func(_ context.Context, e events.Event) error {
		got = append(got, e.Payload.(events.ProfileScored))
		return nil
	})

	_, err := f.gamification.LogHabit(f.ctx, f.client.ID, "water", time.Time{})
	require.NoError(t, err)
	_, err = f.gamification.LogHabit(f.ctx, f.client.ID, "water", time.Time{})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, f.client.ID, got[0].ClientID)
	assert.Nil(t, got[0].SessionID)
}

func TestCloseDay(t *testing.T) {
	f := newFixture(t)
	_, err := f.gamification.LogHabit(f.ctx, f.client.ID, "water", time.Time{})
	require.NoError(t, err)

	_, err = f.gamification.CloseDay(f.ctx, f.client.ID, f.client.ID, "2026-03-02")
	assert.ErrorIs(t, err, ErrValidation, "today cannot be closed")

	f.now = f.now.Add(48 * time.Hour)
	// the active day itself keeps the streak
	p, err := f.gamification.CloseDay(f.ctx, f.coach.ID, f.client.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, p.StreakDays)

	p, err = f.gamification.CloseDay(f.ctx, f.coach.ID, f.client.ID, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 0, p.StreakDays)
	assert.Equal(t, 1, p.BestStreak)

	stranger := f.createUser(t, "Stranger", "stranger@example.com", domain.RoleClient)
	_, err = f.gamification.CloseDay(f.ctx, stranger.ID, f.client.ID, "2026-03-03")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetProfile_Lazy(t *testing.T) {
	f := newFixture(t)

	p, err := f.gamification.GetProfile(f.ctx, f.client.ID, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 0, p.XP)
	assert.Empty(t, p.Badges)

	_, err = f.repos.Profiles.GetByClientID(f.ctx, f.client.ID)
	assert.Error(t, err, "reading does not persist a profile")

	_, err = f.gamification.GetProfile(f.ctx, f.coach.ID, f.client.ID)
	assert.NoError(t, err)

	_, err = f.gamification.GetProfile(f.ctx, f.coach.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSweatScore(t *testing.T) {
	f := newFixture(t)

	empty, err := f.gamification.GetSweatScore(f.ctx, f.client.ID, f.client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Score)
	assert.Equal(t, "2026-02-24", empty.FromDay)
	assert.Equal(t, "2026-03-02", empty.ToDay)

	abandoned := f.startSession(t)
	require.NoError(t, f.sessions.AbandonSession(f.ctx, f.client.ID, abandoned.ID))
	done := f.startSession(t)
	_, err = f.sessions.CompleteSession(f.ctx, f.client.ID, done.ID)
	require.NoError(t, err)
	_, err = f.gamification.LogHabit(f.ctx, f.client.ID, "water", time.Time{})
	require.NoError(t, err)

	score, err := f.gamification.GetSweatScore(f.ctx, f.coach.ID, f.client.ID, "2026-03-02")
	require.NoError(t, err)
	assert.InDelta(t, 50, score.Consistency, 0.001)
	assert.InDelta(t, 100.0/7, score.Streak, 0.001)
	assert.InDelta(t, 25, score.Volume, 0.001)
	assert.InDelta(t, 100.0/7, score.Habits, 0.001)
	assert.Equal(t, 31, score.Score)

	// a week later the streak has lapsed and nothing is in the window
	later, err := f.gamification.GetSweatScore(f.ctx, f.client.ID, f.client.ID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, later.Score)

	_, err = f.gamification.GetSweatScore(f.ctx, f.client.ID, f.client.ID, "yesterday")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestComputeSweatScore(t *testing.T) {
	tests := []struct {
		name string
		in   SweatInputs
		want int
	}{
		{"nothing", SweatInputs{}, 0},
		{"everything", SweatInputs{SessionsInWindow: 4, CompletedInWindow: 4, StreakDays: 7, HabitDays: 7}, 100},
		{"caps each term", SweatInputs{SessionsInWindow: 9, CompletedInWindow: 9, StreakDays: 40, HabitDays: 9}, 100},
		{"consistency only", SweatInputs{SessionsInWindow: 10, CompletedInWindow: 0, StreakDays: 0}, 0},
		{"half of everything", SweatInputs{SessionsInWindow: 4, CompletedInWindow: 2, StreakDays: 3, HabitDays: 3}, 47},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSweatScore(tt.in)
			assert.Equal(t, tt.want, got.Score)
			for _, term := range []float64{got.Consistency, got.Streak, got.Volume, got.Habits} {
				assert.GreaterOrEqual(t, term, 0.0)
				assert.LessOrEqual(t, term, 100.0)
			}
		})
	}
}

func TestScoreNotifier_LevelAndBadges(t *testing.T) {
	sink := &mockNotificationSink{}
	clientID := primitive.NewObjectID()
	sink.On("Send", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.RecipientID == clientID && n.Kind == domain.NotificationLevelUp
	})).Return(nil).Once()
	sink.On("Send", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Kind == domain.NotificationBadgeUnlocked && n.Body == `You earned the "7-Day Streak" badge.`
	})).Return(nil).Once()

	n := NewScoreNotifier(sink, metrics.NewTestManager())
	err := n.Handle(context.Background(), events.Event{
		Type: events.TypeProfileScored,
		Payload: events.ProfileScored{
			ClientID: clientID,
			Result:   domain.ScoringResult{PreviousLevel: 1, NewLevel: 2, BadgesUnlocked: []string{"week_streak"}},
		},
	})
	require.NoError(t, err)
	sink.AssertExpectations(t)
}
