package service

import (
	"testing"
	"time"

	"alcyxob/workout-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monWedFri(weeks int) *Recurrence {
	return &Recurrence{Days: []string{"Mon", "wednesday", "FRI"}, Weeks: weeks}
}

func TestScheduleDays(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wednesday := monday.AddDate(0, 0, 2)

	tests := []struct {
		name       string
		anchor     time.Time
		recurrence *Recurrence
		want       []string
	}{
		{"anchor only", monday, nil, []string{"2026-03-02"}},
		{"two weeks from monday", monday, monWedFri(2), []string{"2026-03-02", "2026-03-04", "2026-03-06", "2026-03-09", "2026-03-11", "2026-03-13"}},
		{"days before a midweek anchor are dropped", wednesday, monWedFri(2), []string{"2026-03-04", "2026-03-06", "2026-03-09", "2026-03-11", "2026-03-13"}},
		{"anchor off the pattern is kept", wednesday, &Recurrence{Days: []string{"sun"}, Weeks: 1}, []string{"2026-03-04", "2026-03-08"}},
		{"zero weeks means one", monday, &Recurrence{Days: []string{"tue"}}, []string{"2026-03-02", "2026-03-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScheduleDays(tt.anchor, tt.recurrence)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ScheduleDays(monday, &Recurrence{Days: []string{"funday"}, Weeks: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ScheduleDays(monday, &Recurrence{Days: []string{"mon"}, Weeks: 53})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScheduleAssignment_IdempotentAcrossCalls(t *testing.T) {
	f := newFixture(t)

	res, err := f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, f.client.ID, "2026-03-02", monWedFri(2))
	require.NoError(t, err)
	assert.Equal(t, 6, res.SessionsCreated)

	again, err := f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, f.client.ID, "2026-03-02", monWedFri(2))
	require.NoError(t, err)
	assert.Equal(t, 0, again.SessionsCreated)
	assert.Equal(t, res.Days, again.Days)

	sessions, err := f.repos.Sessions.ListByClient(f.ctx, f.client.ID, "", "")
	require.NoError(t, err)
	require.Len(t, sessions, 6)
	days := []string{}
	for _, s := range sessions {
		days = append(days, s.ScheduledDay)
		assert.Equal(t, domain.SessionInProgress, s.Status)
		assert.Nil(t, s.DateTimeCompleted)
		require.NotNil(t, s.AssignedBy)
		assert.Equal(t, f.coach.ID, *s.AssignedBy)
		assert.Equal(t, 9, s.DateTimeStarted.Hour())
		assert.Equal(t, s.ScheduledDay, s.DateTimeStarted.Format(domain.DayLayout))
	}
	assert.Equal(t, res.Days, days)

	// one notification for the first call, none for the no-op
	inbox := mustNotifications(t, f, f.client.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationWorkoutAssigned, inbox[0].Kind)
}

func TestScheduleAssignment_SkipsDayWithExistingSession(t *testing.T) {
	f := newFixture(t)
	adHoc := f.startSession(t)

	res, err := f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, f.client.ID, "2026-03-02", monWedFri(2))
	require.NoError(t, err)
	assert.Equal(t, 5, res.SessionsCreated)

	today, err := f.repos.Sessions.FindOnDay(f.ctx, f.client.ID, f.workout.ID, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, adHoc.ID, today[0].ID)
}

func TestScheduleAssignment_Authorization(t *testing.T) {
	f := newFixture(t)
	otherCoach := f.createUser(t, "Other Coach", "other@example.com", domain.RoleCoach)
	unmanaged := f.createUser(t, "Free Agent", "free@example.com", domain.RoleClient)

	_, err := f.scheduler.ScheduleAssignment(f.ctx, otherCoach.ID, f.workout.ID, f.client.ID, "2026-03-02", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, unmanaged.ID, "2026-03-02", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, f.client.ID, "next monday", nil)
	assert.ErrorIs(t, err, ErrValidation)

	sessions, err := f.repos.Sessions.ListByClient(f.ctx, f.client.ID, "", "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestScheduleAssignment_ScheduledSessionIsPlayable(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduler.ScheduleAssignment(f.ctx, f.coach.ID, f.workout.ID, f.client.ID, "2026-03-02", nil)
	require.NoError(t, err)

	sessions, err := f.sessions.ListClientSessions(f.ctx, f.client.ID, f.client.ID, "2026-03-02", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// the ad-hoc start picks up the placeholder instead of creating a second session
	view, err := f.sessions.StartAdHocSession(f.ctx, f.client.ID, f.workout.ID)
	require.NoError(t, err)
	assert.Equal(t, sessions[0].ID, view.Session.ID)

	_, err = f.setLogs.LogSet(f.ctx, f.client.ID, view.Session.ID, f.plank().ID, 1, completePatch(1, 0, domain.FeelingEasy))
	require.NoError(t, err)
	res, err := f.sessions.CompleteSession(f.ctx, f.client.ID, view.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CompletedExercises)
}
