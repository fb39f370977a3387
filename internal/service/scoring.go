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
)

// maxScoringAttempts bounds the optimistic retry loop around a profile update.
const maxScoringAttempts = 3

// ScoringEngine owns every write to a GamificationProfile. Each update is one
// read-modify-write guarded by the profile version.
type ScoringEngine struct {
	profiles        repository.ProfileRepository
	baseXP          int
	exerciseBonusXP int
}

func NewScoringEngine(profiles repository.ProfileRepository, settings Settings) *ScoringEngine {
	return &ScoringEngine{
		profiles:        profiles,
		baseXP:          settings.BaseXP,
		exerciseBonusXP: settings.ExerciseBonusXP,
	}
}

// WorkoutXP is the base award plus the bonus for each fully completed exercise.
func (e *ScoringEngine) WorkoutXP(completedExercises int) int {
	return e.baseXP + e.exerciseBonusXP*completedExercises
}

// CountCompletedExercises counts exercises of w whose every prescribed set is complete.
func CountCompletedExercises(w *domain.Workout, logs []domain.ExerciseSetLog) int {
	if w == nil {
		return 0
	}
	n := 0
	exercises := w.Exercises()
	for i := range exercises {
		if domain.ExerciseFullyComplete(&exercises[i], logs) {
			n++
		}
	}
	return n
}

// Load returns the stored profile or a fresh level-1 profile.
func (e *ScoringEngine) Load(ctx context.Context, clientID primitive.ObjectID) (*domain.GamificationProfile, error) {
	profile, err := e.profiles.GetByClientID(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewGamificationProfile(clientID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// Apply loads the client's profile, runs mutate on it and saves it in one write.
// A concurrent writer surfaces as repository.ErrConflict.
func (e *ScoringEngine) Apply(ctx context.Context, clientID primitive.ObjectID, mutate func(p *domain.GamificationProfile) domain.ScoringResult) (domain.ScoringResult, *domain.GamificationProfile, error) {
	profile, err := e.Load(ctx, clientID)
	if err != nil {
		return domain.ScoringResult{}, nil, err
	}
	res := mutate(profile)
	if err := e.profiles.Save(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.ScoringResult{}, nil, err
		}
		return domain.ScoringResult{}, nil, fmt.Errorf("save profile: %w", err)
	}
	return res, profile, nil
}

// ScoreNotifier turns committed scoring results into client notifications.
type ScoreNotifier struct {
	notifications NotificationSink
	metrics       *metrics.Manager
}

func NewScoreNotifier(notifications NotificationSink, metricsManager *metrics.Manager) *ScoreNotifier {
	return &ScoreNotifier{notifications: notifications, metrics: metricsManager}
}

func (n *ScoreNotifier) Register(d *events.Dispatcher) {
	d.Subscribe(events.TypeProfileScored, "score-notifier", n.Handle)
}

func (n *ScoreNotifier) Handle(ctx context.Context, e events.Event) error {
	scored, ok := e.Payload.(events.ProfileScored)
	if !ok {
		return fmt.Errorf("unexpected payload %T", e.Payload)
	}

	var errs []error
	if scored.Result.LeveledUp() {
		err := n.notifications.Send(ctx, &domain.Notification{
			RecipientID: scored.ClientID,
			Kind:        domain.NotificationLevelUp,
			Title:       "Level up!",
			Body:        fmt.Sprintf("You reached level %d.", scored.Result.NewLevel),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("level-up notification: %w", err))
		}
	}
	for _, badge := range scored.Result.BadgesUnlocked {
		n.metrics.CounterBadgesUnlocked.WithLabelValues(badge).Inc()
		err := n.notifications.Send(ctx, &domain.Notification{
			RecipientID: scored.ClientID,
			Kind:        domain.NotificationBadgeUnlocked,
			Title:       "Badge unlocked",
			Body:        fmt.Sprintf("You earned the %q badge.", domain.BadgeTitle(badge)),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("badge notification %s: %w", badge, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.WithFields(log.Fields{
		"client_id": scored.ClientID.Hex(),
		"new_level": scored.Result.NewLevel,
		"badges":    scored.Result.BadgesUnlocked,
	}).Debug("scoring notifications sent")
	return nil
}
