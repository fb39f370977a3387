// Package events dispatches post-commit domain events to in-process handlers.
//
// Publish is called after the originating write has committed. Handlers run
// synchronously in subscription order; their failures are logged and never
// reach the publisher.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alcyxob/workout-engine/internal/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Type string

const (
	TypeSetLogged      Type = "set_logged"
	TypeProfileScored  Type = "profile_scored"
	TypeWorkoutPlanned Type = "workout_planned"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeSetLogged, TypeProfileScored, TypeWorkoutPlanned:
		return true
	default:
		return false
	}
}

type Event struct {
	ID         string
	Type       Type
	OccurredAt time.Time
	Payload    any
}

// SetLogged follows every successful set log write. Patch holds the fields the
// caller supplied; Log is the stored row after the write.
type SetLogged struct {
	Session domain.WorkoutSession
	Log     domain.ExerciseSetLog
	Patch   domain.SetLogPatch
}

// ProfileScored follows a committed scoring update (workout completion or habit).
type ProfileScored struct {
	ClientID  primitive.ObjectID
	SessionID *primitive.ObjectID
	Result    domain.ScoringResult
}

// WorkoutPlanned follows a scheduling call that created at least one session.
type WorkoutPlanned struct {
	ClientID        primitive.ObjectID
	CoachID         primitive.ObjectID
	Workout         domain.Workout
	SessionsCreated int
	FirstDay        string
}

type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	handler Handler
}

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Type][]subscription),
	}
}

func (d *Dispatcher) Subscribe(t Type, name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], subscription{name: name, handler: h})
}

// Publish delivers payload to every handler of t and returns the number of
// handlers that failed.
func (d *Dispatcher) Publish(ctx context.Context, t Type, payload any) int {
	d.mu.RLock()
	subs := append([]subscription(nil), d.handlers[t]...)
	d.mu.RUnlock()

	e := Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	failed := 0
	for _, sub := range subs {
		if err := deliver(ctx, sub, e); err != nil {
			failed++
			log.WithFields(log.Fields{
				"event_id":   e.ID,
				"event_type": e.Type,
				"handler":    sub.name,
			}).Errorf("event handler failed: %s", err)
		}
	}
	return failed
}

func deliver(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.handler(ctx, e)
}
