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

// ExerciseProgress summarizes the logging state of one exercise in a session.
type ExerciseProgress struct {
	WorkoutExerciseID primitive.ObjectID `json:"workoutExerciseId"`
	Name              string             `json:"name"`
	PrescribedSets    int                `json:"prescribedSets"`
	LoggedSets        int                `json:"loggedSets"`
	CompletedSets     int                `json:"completedSets"`
	FullyComplete     bool               `json:"fullyComplete"`
}

// SessionView is what a client sees when opening a session.
type SessionView struct {
	Session   domain.WorkoutSession   `json:"session"`
	Workout   *domain.Workout         `json:"workout"`
	SetLogs   []domain.ExerciseSetLog `json:"setLogs"`
	Exercises []ExerciseProgress      `json:"exercises"`
}

// CompletionResult is returned by CompleteSession. NewLevel is set only on a level-up.
type CompletionResult struct {
	SessionID          primitive.ObjectID `json:"sessionId"`
	XPEarned           int                `json:"xpEarned"`
	CompletedExercises int                `json:"completedExercises"`
	Level              int                `json:"level"`
	NewLevel           *int               `json:"newLevel,omitempty"`
	BadgesUnlocked     []string           `json:"badgesUnlocked"`
	StreakDays         int                `json:"streakDays"`
}

type SessionService interface {
	StartOrFetchSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (*SessionView, error)
	// StartAdHocSession resumes today's in-progress session for the workout, or starts one.
	StartAdHocSession(ctx context.Context, requesterID, workoutID primitive.ObjectID) (*SessionView, error)
	// ListClientSessions is open to the client and to the client's coach.
	ListClientSessions(ctx context.Context, requesterID, clientID primitive.ObjectID, fromDay, toDay string) ([]domain.WorkoutSession, error)
	CompleteSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (*CompletionResult, error)
	AbandonSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) error
}

type sessionService struct {
	repos      Repositories
	scoring    *ScoringEngine
	dispatcher *events.Dispatcher
	metrics    *metrics.Manager
	settings   Settings
}

func NewSessionService(
	repos Repositories,
	scoring *ScoringEngine,
	dispatcher *events.Dispatcher,
	metricsManager *metrics.Manager,
	settings Settings,
) SessionService {
	return &sessionService{
		repos:      repos,
		scoring:    scoring,
		dispatcher: dispatcher,
		metrics:    metricsManager,
		settings:   settings,
	}
}

// loadOwnedSession loads a session and checks that requesterID is its client.
// Every mutating operation calls it before writing anything.
func loadOwnedSession(ctx context.Context, sessions repository.SessionRepository, requesterID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	session, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.ClientID != requesterID {
		return nil, ErrUnauthorized
	}
	return session, nil
}

func loadWorkout(ctx context.Context, workouts repository.WorkoutRepository, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := workouts.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("load workout: %w", err)
	}
	return workout, nil
}

func (s *sessionService) StartOrFetchSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (_ *SessionView, err error) {
	ctx, span := tracer.Start(ctx, "service.session.startOrFetch")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("session.id", sessionID.Hex()))

	session, err := loadOwnedSession(ctx, s.repos.Sessions, requesterID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, session)
}

func (s *sessionService) buildView(ctx context.Context, session *domain.WorkoutSession) (*SessionView, error) {
	workout, err := loadWorkout(ctx, s.repos.Workouts, session.WorkoutID)
	if err != nil {
		return nil, err
	}
	logs, err := s.repos.SetLogs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list set logs: %w", err)
	}

	exercises := workout.Exercises()
	progress := make([]ExerciseProgress, 0, len(exercises))
	for i := range exercises {
		ex := &exercises[i]
		p := ExerciseProgress{
			WorkoutExerciseID: ex.ID,
			Name:              ex.Name,
			PrescribedSets:    ex.SetCount(),
			FullyComplete:     domain.ExerciseFullyComplete(ex, logs),
		}
		for j := range logs {
			if logs[j].WorkoutExerciseID != ex.ID {
				continue
			}
			p.LoggedSets++
			if logs[j].IsComplete() {
				p.CompletedSets++
			}
		}
		progress = append(progress, p)
	}

	return &SessionView{
		Session:   *session,
		Workout:   workout,
		SetLogs:   logs,
		Exercises: progress,
	}, nil
}

func (s *sessionService) StartAdHocSession(ctx context.Context, requesterID, workoutID primitive.ObjectID) (_ *SessionView, err error) {
	ctx, span := tracer.Start(ctx, "service.session.startAdHoc")
	defer func() { endSpan(span, err) }()

	workout, err := loadWorkout(ctx, s.repos.Workouts, workoutID)
	if err != nil {
		return nil, err
	}
	if err := checkWorkoutAccess(ctx, s.repos.Users, requesterID, workout); err != nil {
		return nil, err
	}

	now := s.settings.now()
	day := s.settings.dayOf(now)

	existing, err := s.repos.Sessions.FindOnDay(ctx, requesterID, workoutID, day)
	if err != nil {
		return nil, fmt.Errorf("find sessions on %s: %w", day, err)
	}
	for i := range existing {
		if existing[i].Status == domain.SessionInProgress {
			return s.buildView(ctx, &existing[i])
		}
	}

	session := &domain.WorkoutSession{
		ClientID:        requesterID,
		WorkoutID:       workoutID,
		Status:          domain.SessionInProgress,
		ScheduledDay:    day,
		DateTimeStarted: now,
	}
	if _, err := s.repos.Sessions.Create(ctx, session, false); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.WithFields(log.Fields{
		"session_id": session.ID.Hex(),
		"client_id":  requesterID.Hex(),
		"workout_id": workoutID.Hex(),
	}).Info("ad-hoc session started")

	return s.buildView(ctx, session)
}

func (s *sessionService) ListClientSessions(ctx context.Context, requesterID, clientID primitive.ObjectID, fromDay, toDay string) ([]domain.WorkoutSession, error) {
	for _, d := range []string{fromDay, toDay} {
		if d == "" {
			continue
		}
		if _, err := domain.ParseDay(d, s.settings.loc()); err != nil {
			return nil, validationErr("invalid day %q, expected YYYY-MM-DD", d)
		}
	}
	if requesterID != clientID {
		client, err := s.repos.Users.GetByID(ctx, clientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
		if client.CoachID == nil || *client.CoachID != requesterID {
			return nil, ErrUnauthorized
		}
	}
	return s.repos.Sessions.ListByClient(ctx, clientID, fromDay, toDay)
}

// CompleteSession moves the session to COMPLETED and applies scoring in the same
// transaction. A second call for the same session is rejected with ErrInvalidTransition.
func (s *sessionService) CompleteSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (_ *CompletionResult, err error) {
	ctx, span := tracer.Start(ctx, "service.session.complete")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("session.id", sessionID.Hex()))

	session, err := loadOwnedSession(ctx, s.repos.Sessions, requesterID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransitionTo(domain.SessionCompleted) {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	workout, err := loadWorkout(ctx, s.repos.Workouts, session.WorkoutID)
	if err != nil {
		return nil, err
	}
	logs, err := s.repos.SetLogs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list set logs: %w", err)
	}

	completed := CountCompletedExercises(workout, logs)
	xp := s.scoring.WorkoutXP(completed)
	completedAt := s.settings.now()
	day := s.settings.dayOf(completedAt)

	var (
		scored  domain.ScoringResult
		profile *domain.GamificationProfile
	)
	for attempt := 1; attempt <= maxScoringAttempts; attempt++ {
		err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			terr := s.repos.Sessions.Transition(ctx, session.ID, domain.SessionInProgress, domain.SessionCompleted, &completedAt, xp)
			if errors.Is(terr, repository.ErrConflict) {
				return fmt.Errorf("%w: session is no longer in progress", ErrInvalidTransition)
			}
			if terr != nil {
				return fmt.Errorf("complete session: %w", terr)
			}

			var aerr error
			scored, profile, aerr = s.scoring.Apply(ctx, session.ClientID, func(p *domain.GamificationProfile) domain.ScoringResult {
				return p.ApplyWorkoutCompletion(day, xp)
			})
			return aerr
		})
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		log.WithFields(log.Fields{
			"session_id": session.ID.Hex(),
			"attempt":    attempt,
		}).Warn("profile changed concurrently, retrying completion")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.CounterSessionsCompleted.Inc()
	s.metrics.CounterXPAwarded.Add(float64(xp))

	log.WithFields(log.Fields{
		"session_id":    session.ID.Hex(),
		"client_id":     session.ClientID.Hex(),
		"xp":            xp,
		"profile_level": profile.Level,
		"streak":        profile.StreakDays,
	}).Info("session completed")

	sid := session.ID
	s.dispatcher.Publish(ctx, events.TypeProfileScored, events.ProfileScored{
		ClientID:  session.ClientID,
		SessionID: &sid,
		Result:    scored,
	})

	res := &CompletionResult{
		SessionID:          session.ID,
		XPEarned:           scored.XPEarned,
		CompletedExercises: completed,
		Level:              scored.NewLevel,
		BadgesUnlocked:     scored.BadgesUnlocked,
		StreakDays:         scored.StreakDays,
	}
	if scored.LeveledUp() {
		lvl := scored.NewLevel
		res.NewLevel = &lvl
	}
	return res, nil
}

func (s *sessionService) AbandonSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (err error) {
	ctx, span := tracer.Start(ctx, "service.session.abandon")
	defer func() { endSpan(span, err) }()

	session, err := loadOwnedSession(ctx, s.repos.Sessions, requesterID, sessionID)
	if err != nil {
		return err
	}
	if !session.Status.CanTransitionTo(domain.SessionAbandoned) {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	err = s.repos.Sessions.Transition(ctx, session.ID, domain.SessionInProgress, domain.SessionAbandoned, nil, 0)
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: session is no longer in progress", ErrInvalidTransition)
	}
	if err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}

	s.metrics.CounterSessionsAbandoned.Inc()
	log.WithField("session_id", session.ID.Hex()).Info("session abandoned")
	return nil
}
