package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultListLimit = 50

var errHabitAlreadyLogged = errors.New("habit already logged for this day")

// HabitResult reports the outcome of a habit check-in. Counted is false when the
// habit had already been logged that day.
type HabitResult struct {
	Day     string                     `json:"day"`
	Counted bool                       `json:"counted"`
	Result  domain.ScoringResult       `json:"result"`
	Profile domain.GamificationProfile `json:"profile"`
}

type GamificationService interface {
	LogHabit(ctx context.Context, clientID primitive.ObjectID, habit string, at time.Time) (*HabitResult, error)
	// CloseDay resets the streak when day (strictly before today) had no activity.
	CloseDay(ctx context.Context, requesterID, clientID primitive.ObjectID, day string) (*domain.GamificationProfile, error)
	GetProfile(ctx context.Context, requesterID, clientID primitive.ObjectID) (*domain.GamificationProfile, error)
	GetSweatScore(ctx context.Context, requesterID, clientID primitive.ObjectID, asOfDay string) (*SweatScore, error)
	ListNotifications(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Notification, error)
	ListCoachNotes(ctx context.Context, coachID primitive.ObjectID, limit int) ([]domain.CoachNote, error)
}

type gamificationService struct {
	repos      Repositories
	scoring    *ScoringEngine
	dispatcher *events.Dispatcher
	settings   Settings
}

func NewGamificationService(repos Repositories, scoring *ScoringEngine, dispatcher *events.Dispatcher, settings Settings) GamificationService {
	return &gamificationService{
		repos:      repos,
		scoring:    scoring,
		dispatcher: dispatcher,
		settings:   settings,
	}
}

// checkClientAccess allows the client and the client's coach.
func checkClientAccess(ctx context.Context, users repository.UserRepository, requesterID, clientID primitive.ObjectID) error {
	if requesterID == clientID {
		return nil
	}
	client, err := users.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	if client.CoachID == nil || *client.CoachID != requesterID {
		return ErrUnauthorized
	}
	return nil
}

func (s *gamificationService) LogHabit(ctx context.Context, clientID primitive.ObjectID, habit string, at time.Time) (_ *HabitResult, err error) {
	ctx, span := tracer.Start(ctx, "service.gamification.logHabit")
	defer func() { endSpan(span, err) }()

	habit = strings.ToLower(strings.TrimSpace(habit))
	if habit == "" {
		return nil, validationErr("habit name is required")
	}
	if at.IsZero() {
		at = s.settings.now()
	}
	if at.After(s.settings.now()) {
		return nil, validationErr("habit cannot be logged in the future")
	}
	day := s.settings.dayOf(at)

	var (
		scored  domain.ScoringResult
		profile *domain.GamificationProfile
	)
	for attempt := 1; attempt <= maxScoringAttempts; attempt++ {
		err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			herr := s.repos.Habits.Create(ctx, &domain.HabitLog{
				ClientID: clientID,
				Habit:    habit,
				Day:      day,
				LoggedAt: at.UTC(),
			})
			if errors.Is(herr, repository.ErrDuplicate) {
				return errHabitAlreadyLogged
			}
			if herr != nil {
				return fmt.Errorf("create habit log: %w", herr)
			}

			var aerr error
			scored, profile, aerr = s.scoring.Apply(ctx, clientID, func(p *domain.GamificationProfile) domain.ScoringResult {
				return p.ApplyHabitCompletion(day)
			})
			return aerr
		})
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}

	if errors.Is(err, errHabitAlreadyLogged) {
		current, lerr := s.scoring.Load(ctx, clientID)
		if lerr != nil {
			return nil, lerr
		}
		return &HabitResult{Day: day, Counted: false, Profile: *current}, nil
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"client_id": clientID.Hex(),
		"habit":     habit,
		"day":       day,
		"streak":    profile.StreakDays,
	}).Info("habit logged")

	s.dispatcher.Publish(ctx, events.TypeProfileScored, events.ProfileScored{
		ClientID: clientID,
		Result:   scored,
	})

	return &HabitResult{Day: day, Counted: true, Result: scored, Profile: *profile}, nil
}

func (s *gamificationService) CloseDay(ctx context.Context, requesterID, clientID primitive.ObjectID, day string) (*domain.GamificationProfile, error) {
	if err := checkClientAccess(ctx, s.repos.Users, requesterID, clientID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDay(day, s.settings.loc()); err != nil {
		return nil, validationErr("invalid day %q, expected YYYY-MM-DD", day)
	}
	if day >= s.settings.today() {
		return nil, validationErr("only past days can be closed")
	}

	for attempt := 1; attempt <= maxScoringAttempts; attempt++ {
		profile, err := s.scoring.Load(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if !profile.CloseDay(day) {
			return profile, nil
		}
		err = s.repos.Profiles.Save(ctx, profile)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save profile: %w", err)
		}
		log.WithFields(log.Fields{"client_id": clientID.Hex(), "day": day}).Info("streak reset after inactive day")
		return profile, nil
	}
	return nil, fmt.Errorf("close day: %w", repository.ErrConflict)
}

func (s *gamificationService) GetProfile(ctx context.Context, requesterID, clientID primitive.ObjectID) (*domain.GamificationProfile, error) {
	if err := checkClientAccess(ctx, s.repos.Users, requesterID, clientID); err != nil {
		return nil, err
	}
	return s.scoring.Load(ctx, clientID)
}

func (s *gamificationService) GetSweatScore(ctx context.Context, requesterID, clientID primitive.ObjectID, asOfDay string) (_ *SweatScore, err error) {
	ctx, span := tracer.Start(ctx, "service.gamification.sweatScore")
	defer func() { endSpan(span, err) }()

	if err := checkClientAccess(ctx, s.repos.Users, requesterID, clientID); err != nil {
		return nil, err
	}
	if asOfDay == "" {
		asOfDay = s.settings.today()
	} else if _, err := domain.ParseDay(asOfDay, s.settings.loc()); err != nil {
		return nil, validationErr("invalid day %q, expected YYYY-MM-DD", asOfDay)
	}
	fromDay := domain.AddDays(asOfDay, -(SweatWindowDays - 1))

	sessions, err := s.repos.Sessions.ListByClient(ctx, clientID, fromDay, asOfDay)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	habitDays, err := s.repos.Habits.CountActiveDays(ctx, clientID, fromDay, asOfDay)
	if err != nil {
		return nil, fmt.Errorf("count habit days: %w", err)
	}
	profile, err := s.scoring.Load(ctx, clientID)
	if err != nil {
		return nil, err
	}

	in := SweatInputs{
		SessionsInWindow: len(sessions),
		HabitDays:        habitDays,
	}
	for _, sess := range sessions {
		if sess.Status == domain.SessionCompleted {
			in.CompletedInWindow++
		}
	}
	// a streak whose last activity is older than the day before asOf has lapsed
	if profile.LastActiveDate != "" && profile.LastActiveDate >= domain.AddDays(asOfDay, -1) {
		in.StreakDays = profile.StreakDays
	}

	score := ComputeSweatScore(in)
	score.FromDay = fromDay
	score.ToDay = asOfDay
	return &score, nil
}

func (s *gamificationService) ListNotifications(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repos.Notifications.ListByRecipient(ctx, recipientID, limit)
}

func (s *gamificationService) ListCoachNotes(ctx context.Context, coachID primitive.ObjectID, limit int) ([]domain.CoachNote, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repos.CoachNotes.ListByCoach(ctx, coachID, limit)
}
