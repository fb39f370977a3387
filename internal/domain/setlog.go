package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeelingCode is the client's rating of how a set felt.
type FeelingCode string

const (
	FeelingEasy          FeelingCode = "EASY"
	FeelingGoodChallenge FeelingCode = "GOOD_CHALLENGE"
	FeelingHard          FeelingCode = "HARD"
	FeelingFailed        FeelingCode = "FAILED"
	FeelingPain          FeelingCode = "PAIN"
)

func (f FeelingCode) IsValid() bool {
	switch f {
	case FeelingEasy, FeelingGoodChallenge, FeelingHard, FeelingFailed, FeelingPain:
		return true
	default:
		return false
	}
}

// ExerciseSetLog is keyed by (SessionID, WorkoutExerciseID, SetNumber).
// Targets are a snapshot taken on insert and are never re-derived.
type ExerciseSetLog struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID         primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	WorkoutExerciseID primitive.ObjectID `bson:"workoutExerciseId" json:"workoutExerciseId"`
	SetNumber         int                `bson:"setNumber" json:"setNumber"`
	ExerciseName      string             `bson:"exerciseName" json:"exerciseName"`
	TargetReps        int                `bson:"targetReps" json:"targetReps"`
	TargetWeight      *float64           `bson:"targetWeight,omitempty" json:"targetWeight,omitempty"`
	ActualReps        *int               `bson:"actualReps,omitempty" json:"actualReps,omitempty"`
	ActualWeight      *float64           `bson:"actualWeight,omitempty" json:"actualWeight,omitempty"`
	FeelingCode       FeelingCode        `bson:"feelingCode,omitempty" json:"feelingCode,omitempty"`
	FeelingEmoji      string             `bson:"feelingEmoji,omitempty" json:"feelingEmoji,omitempty"`
	FeelingNote       *string            `bson:"feelingNote,omitempty" json:"feelingNote,omitempty"`
	IsExtraSet        bool               `bson:"isExtraSet" json:"isExtraSet"`
	VideoKey          string             `bson:"videoKey,omitempty" json:"-"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsComplete reports whether reps, weight (zero counts) and feeling are all recorded.
func (l *ExerciseSetLog) IsComplete() bool {
	return l.ActualReps != nil && l.ActualWeight != nil && l.FeelingCode != ""
}

// SetLogPatch carries the fields a single autosave call supplies. Nil means "leave as is".
type SetLogPatch struct {
	ActualReps   *int         `json:"actualReps,omitempty"`
	ActualWeight *float64     `json:"actualWeight,omitempty"`
	FeelingCode  *FeelingCode `json:"feelingCode,omitempty"`
	FeelingEmoji *string      `json:"feelingEmoji,omitempty"`
	FeelingNote  *string      `json:"feelingNote,omitempty"`
	VideoKey     *string      `json:"-"`
}

var ErrInvalidSetLog = errors.New("invalid set log")

func (p SetLogPatch) Validate() error {
	if p.ActualReps != nil && *p.ActualReps < 0 {
		return fmt.Errorf("%w: actual reps must not be negative", ErrInvalidSetLog)
	}
	if p.ActualWeight != nil && *p.ActualWeight < 0 {
		return fmt.Errorf("%w: actual weight must not be negative", ErrInvalidSetLog)
	}
	if p.FeelingCode != nil && !p.FeelingCode.IsValid() {
		return fmt.Errorf("%w: unknown feeling code %q", ErrInvalidSetLog, *p.FeelingCode)
	}
	return nil
}

// Apply overwrites only the supplied fields of l.
func (p SetLogPatch) Apply(l *ExerciseSetLog) {
	if p.ActualReps != nil {
		v := *p.ActualReps
		l.ActualReps = &v
	}
	if p.ActualWeight != nil {
		v := *p.ActualWeight
		l.ActualWeight = &v
	}
	if p.FeelingCode != nil {
		l.FeelingCode = *p.FeelingCode
	}
	if p.FeelingEmoji != nil {
		l.FeelingEmoji = *p.FeelingEmoji
	}
	if p.FeelingNote != nil {
		v := *p.FeelingNote
		l.FeelingNote = &v
	}
	if p.VideoKey != nil {
		l.VideoKey = *p.VideoKey
	}
}

// ExerciseFullyComplete reports whether every prescribed set of e has a complete log.
// Extra sets do not count towards (or against) completion. An exercise without a
// prescription is complete once it has at least one log and all its logs are complete.
func ExerciseFullyComplete(e *WorkoutExercise, logs []ExerciseSetLog) bool {
	bySet := make(map[int]*ExerciseSetLog)
	for i := range logs {
		if logs[i].WorkoutExerciseID == e.ID {
			bySet[logs[i].SetNumber] = &logs[i]
		}
	}
	prescribed := e.SetCount()
	if prescribed == 0 {
		if len(bySet) == 0 {
			return false
		}
		for _, l := range bySet {
			if !l.IsComplete() {
				return false
			}
		}
		return true
	}
	for n := 1; n <= prescribed; n++ {
		l, ok := bySet[n]
		if !ok || !l.IsComplete() {
			return false
		}
	}
	return true
}
