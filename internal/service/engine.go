package service

import (
	"time"

	"alcyxob/workout-engine/internal/config"
	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"
)

// Repositories bundles the stores shared by the engine services.
type Repositories struct {
	Users         repository.UserRepository
	Workouts      repository.WorkoutRepository
	Sessions      repository.SessionRepository
	SetLogs       repository.SetLogRepository
	Profiles      repository.ProfileRepository
	Notifications repository.NotificationRepository
	CoachNotes    repository.CoachNoteRepository
	Habits        repository.HabitRepository
	Tx            repository.Transactor
}

// Settings holds the policy constants of the engine.
type Settings struct {
	BaseXP          int
	ExerciseBonusXP int
	// ScheduleHour is the time of day given to scheduled placeholder sessions.
	ScheduleHour int
	// Location decides calendar-day boundaries for streaks, habits and scheduling.
	Location *time.Location
	Now      func() time.Time
}

func SettingsFromConfig(cfg config.Config) (Settings, error) {
	loc, err := cfg.Schedule.Loc()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		BaseXP:          cfg.Scoring.BaseXP,
		ExerciseBonusXP: cfg.Scoring.ExerciseBonusXP,
		ScheduleHour:    cfg.Schedule.Hour,
		Location:        loc,
		Now:             time.Now,
	}, nil
}

func (s Settings) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s Settings) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Settings) today() string {
	return s.dayOf(s.now())
}

func (s Settings) dayOf(t time.Time) string {
	return domain.DayKey(t, s.loc())
}
