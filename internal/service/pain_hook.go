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
)

// NotificationSink delivers a notification to a user.
type NotificationSink interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// CoachNoteSink appends a note to a coach's feed.
type CoachNoteSink interface {
	Append(ctx context.Context, note *domain.CoachNote) error
}

// repoNotificationSink and repoCoachNoteSink persist through the repositories.
type repoNotificationSink struct{ repo repository.NotificationRepository }

func (s repoNotificationSink) Send(ctx context.Context, n *domain.Notification) error {
	return s.repo.Create(ctx, n)
}

type repoCoachNoteSink struct{ repo repository.CoachNoteRepository }

func (s repoCoachNoteSink) Append(ctx context.Context, note *domain.CoachNote) error {
	return s.repo.Create(ctx, note)
}

func NewNotificationSink(repo repository.NotificationRepository) NotificationSink {
	return repoNotificationSink{repo: repo}
}

func NewCoachNoteSink(repo repository.CoachNoteRepository) CoachNoteSink {
	return repoCoachNoteSink{repo: repo}
}

// PainHook reacts to sets logged with the PAIN feeling code by writing one
// coach note and one notification to the workout's coach. It fires for every
// call that supplies PAIN; there is no dedup key.
type PainHook struct {
	workouts      repository.WorkoutRepository
	notifications NotificationSink
	notes         CoachNoteSink
	metrics       *metrics.Manager
}

func NewPainHook(workouts repository.WorkoutRepository, notifications NotificationSink, notes CoachNoteSink, metricsManager *metrics.Manager) *PainHook {
	return &PainHook{
		workouts:      workouts,
		notifications: notifications,
		notes:         notes,
		metrics:       metricsManager,
	}
}

func (h *PainHook) Register(d *events.Dispatcher) {
	d.Subscribe(events.TypeSetLogged, "pain-hook", h.Handle)
}

func (h *PainHook) Handle(ctx context.Context, e events.Event) (err error) {
	logged, ok := e.Payload.(events.SetLogged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", e.Payload)
	}
	if logged.Patch.FeelingCode == nil || *logged.Patch.FeelingCode != domain.FeelingPain {
		return nil
	}

	ctx, span := tracer.Start(ctx, "service.painHook.handle")
	defer func() { endSpan(span, err) }()

	h.metrics.CounterPainReports.Inc()

	workout, err := h.workouts.GetByID(ctx, logged.Session.WorkoutID)
	if err != nil {
		return fmt.Errorf("load workout for pain report: %w", err)
	}
	if workout.CoachID == nil {
		log.WithField("session_id", logged.Session.ID.Hex()).Debug("pain reported on a workout without coach")
		return nil
	}
	coachID := *workout.CoachID

	message := painMessage(logged.Log)
	var errs []error
	if err := h.notes.Append(ctx, &domain.CoachNote{
		CoachID:       coachID,
		ClientID:      logged.Session.ClientID,
		Message:       message,
		AutoSuggested: true,
	}); err != nil {
		errs = append(errs, fmt.Errorf("append coach note: %w", err))
	}
	if err := h.notifications.Send(ctx, &domain.Notification{
		RecipientID: coachID,
		Kind:        domain.NotificationPainReport,
		Title:       "Pain reported",
		Body:        message,
	}); err != nil {
		errs = append(errs, fmt.Errorf("send notification: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.WithFields(log.Fields{
		"session_id": logged.Session.ID.Hex(),
		"coach_id":   coachID.Hex(),
		"exercise":   logged.Log.ExerciseName,
		"set":        logged.Log.SetNumber,
	}).Warn("pain reported, coach notified")
	return nil
}

func painMessage(l domain.ExerciseSetLog) string {
	msg := fmt.Sprintf("Client reported pain on %s, set %d.", l.ExerciseName, l.SetNumber)
	if l.FeelingNote != nil && *l.FeelingNote != "" {
		msg += fmt.Sprintf(" Note: %q", *l.FeelingNote)
	}
	return msg
}
