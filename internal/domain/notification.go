package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotificationPainReport      NotificationKind = "PAIN_REPORT"
	NotificationLevelUp         NotificationKind = "LEVEL_UP"
	NotificationBadgeUnlocked   NotificationKind = "BADGE_UNLOCKED"
	NotificationWorkoutAssigned NotificationKind = "WORKOUT_ASSIGNED"
)

// Notification is append-only; the engine never mutates one after insert.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	Kind        NotificationKind   `bson:"kind" json:"kind"`
	Title       string             `bson:"title" json:"title"`
	Body        string             `bson:"body" json:"body"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// CoachNote is an append-only note addressed to a coach about one of their clients.
type CoachNote struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID       primitive.ObjectID `bson:"coachId" json:"coachId"`
	ClientID      primitive.ObjectID `bson:"clientId" json:"clientId"`
	Message       string             `bson:"message" json:"message"`
	AutoSuggested bool               `bson:"autoSuggested" json:"autoSuggested"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// HabitLog records one habit check-in; (ClientID, Habit, Day) is unique.
type HabitLog struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID primitive.ObjectID `bson:"clientId" json:"clientId"`
	Habit    string             `bson:"habit" json:"habit"`
	Day      string             `bson:"day" json:"day"`
	LoggedAt time.Time          `bson:"loggedAt" json:"loggedAt"`
}
