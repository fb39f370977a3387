package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus type for the session lifecycle
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

// sessionTransitions lists the allowed edges; terminal states have none.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionInProgress: {SessionCompleted, SessionAbandoned},
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WorkoutSession is one client attempt at a workout definition.
// It references the workout; structural edits to the workout are visible here.
type WorkoutSession struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientID          primitive.ObjectID  `bson:"clientId" json:"clientId"`
	WorkoutID         primitive.ObjectID  `bson:"workoutId" json:"workoutId"`
	AssignedBy        *primitive.ObjectID `bson:"assignedBy,omitempty" json:"assignedBy,omitempty"` // coach who scheduled it, nil for ad-hoc
	Status            SessionStatus       `bson:"status" json:"status"`
	ScheduledDay      string              `bson:"scheduledDay" json:"scheduledDay"` // calendar day (YYYY-MM-DD), unique per client+workout
	DateTimeStarted   time.Time           `bson:"dateTimeStarted" json:"dateTimeStarted"`
	DateTimeCompleted *time.Time          `bson:"dateTimeCompleted,omitempty" json:"dateTimeCompleted,omitempty"`
	XPEarned          int                 `bson:"xpEarned,omitempty" json:"xpEarned,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}
