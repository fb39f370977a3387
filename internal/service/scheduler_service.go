package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

const maxRecurrenceWeeks = 52

// Recurrence repeats an assignment on the given weekdays for Weeks weeks,
// counted from the week (Monday-based) that contains the anchor date.
type Recurrence struct {
	Days  []string `json:"days"` // weekday names, "mon" or "monday", any case
	Weeks int      `json:"weeks"`
}

type ScheduleResult struct {
	SessionsCreated int      `json:"sessionsCreated"`
	Days            []string `json:"days"` // candidate days not before the anchor, created or already present
}

type SchedulerService interface {
	// ScheduleAssignment creates IN_PROGRESS placeholders for each candidate day that
	// has no session yet for (client, workout). Re-running it creates nothing new.
	ScheduleAssignment(ctx context.Context, coachID, workoutID, clientID primitive.ObjectID, anchorDay string, recurrence *Recurrence) (*ScheduleResult, error)
}

type schedulerService struct {
	repos         Repositories
	notifications NotificationSink
	dispatcher    *events.Dispatcher
	metrics       *metrics.Manager
	settings      Settings
}

func NewSchedulerService(
	repos Repositories,
	notifications NotificationSink,
	dispatcher *events.Dispatcher,
	metricsManager *metrics.Manager,
	settings Settings,
) SchedulerService {
	return &schedulerService{
		repos:         repos,
		notifications: notifications,
		dispatcher:    dispatcher,
		metrics:       metricsManager,
		settings:      settings,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, validationErr("unknown weekday %q", name)
	}
	return d, nil
}

// ScheduleDays expands the anchor and recurrence into sorted, distinct day keys,
// dropping anything before the anchor.
func ScheduleDays(anchor time.Time, recurrence *Recurrence) ([]string, error) {
	anchorDay := anchor.Format(domain.DayLayout)
	set := map[string]struct{}{anchorDay: {}}

	if recurrence != nil && len(recurrence.Days) > 0 {
		weeks := recurrence.Weeks
		if weeks <= 0 {
			weeks = 1
		}
		if weeks > maxRecurrenceWeeks {
			return nil, validationErr("recurrence may span at most %d weeks", maxRecurrenceWeeks)
		}
		// Monday of the anchor's week
		monday := anchor.AddDate(0, 0, -((int(anchor.Weekday()) + 6) % 7))
		for _, name := range recurrence.Days {
			wd, err := ParseWeekday(name)
			if err != nil {
				return nil, err
			}
			offset := (int(wd) + 6) % 7
			for w := 0; w < weeks; w++ {
				day := monday.AddDate(0, 0, 7*w+offset).Format(domain.DayLayout)
				if day < anchorDay {
					continue
				}
				set[day] = struct{}{}
			}
		}
	}

	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days, nil
}

func (s *schedulerService) ScheduleAssignment(ctx context.Context, coachID, workoutID, clientID primitive.ObjectID, anchorDay string, recurrence *Recurrence) (_ *ScheduleResult, err error) {
	ctx, span := tracer.Start(ctx, "service.scheduler.schedule")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("workout.id", workoutID.Hex()),
		attribute.String("client.id", clientID.Hex()),
	)

	loc := s.settings.loc()
	anchor, err := domain.ParseDay(anchorDay, loc)
	if err != nil {
		return nil, validationErr("invalid anchor date %q, expected YYYY-MM-DD", anchorDay)
	}
	days, err := ScheduleDays(anchor, recurrence)
	if err != nil {
		return nil, err
	}

	workout, err := loadWorkout(ctx, s.repos.Workouts, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.CoachID == nil || *workout.CoachID != coachID {
		return nil, ErrUnauthorized
	}
	client, err := s.repos.Users.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("load client: %w", err)
	}
	if client.CoachID == nil || *client.CoachID != coachID {
		return nil, ErrUnauthorized
	}

	result := &ScheduleResult{Days: days}
	firstCreated := ""
	for _, day := range days {
		existing, err := s.repos.Sessions.FindOnDay(ctx, clientID, workoutID, day)
		if err != nil {
			return nil, fmt.Errorf("find sessions on %s: %w", day, err)
		}
		if len(existing) > 0 {
			continue
		}

		d, _ := domain.ParseDay(day, loc)
		assignedBy := coachID
		session := &domain.WorkoutSession{
			ClientID:        clientID,
			WorkoutID:       workoutID,
			AssignedBy:      &assignedBy,
			Status:          domain.SessionInProgress,
			ScheduledDay:    day,
			DateTimeStarted: time.Date(d.Year(), d.Month(), d.Day(), s.settings.ScheduleHour, 0, 0, 0, loc),
		}
		_, err = s.repos.Sessions.Create(ctx, session, true)
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent call created it first
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session for %s: %w", day, err)
		}
		result.SessionsCreated++
		if firstCreated == "" {
			firstCreated = day
		}
	}

	log.WithFields(log.Fields{
		"coach_id":   coachID.Hex(),
		"client_id":  clientID.Hex(),
		"workout_id": workoutID.Hex(),
		"candidates": len(days),
		"created":    result.SessionsCreated,
	}).Info("assignment scheduled")

	if result.SessionsCreated == 0 {
		return result, nil
	}
	s.metrics.CounterSessionsScheduled.Add(float64(result.SessionsCreated))

	// One notification per call, whatever the count.
	if err := s.notifications.Send(ctx, &domain.Notification{
		RecipientID: clientID,
		Kind:        domain.NotificationWorkoutAssigned,
		Title:       "New workout assigned",
		Body:        fmt.Sprintf("%s is on your plan starting %s.", workout.Name, firstCreated),
	}); err != nil {
		log.WithError(err).WithField("client_id", clientID.Hex()).Warn("failed to send assignment notification")
	}

	s.dispatcher.Publish(ctx, events.TypeWorkoutPlanned, events.WorkoutPlanned{
		ClientID:        clientID,
		CoachID:         coachID,
		Workout:         *workout,
		SessionsCreated: result.SessionsCreated,
		FirstDay:        firstCreated,
	})
	return result, nil
}
