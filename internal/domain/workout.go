package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BlockType tags how a block's exercises are meant to be performed.
type BlockType string

const (
	BlockStandardSetsReps BlockType = "STANDARD_SETS_REPS"
	BlockSuperset         BlockType = "SUPERSET"
	BlockCircuit          BlockType = "CIRCUIT"
	BlockCustom           BlockType = "CUSTOM"
)

func (t BlockType) IsValid() bool {
	switch t {
	case BlockStandardSetsReps, BlockSuperset, BlockCircuit, BlockCustom:
		return true
	default:
		return false
	}
}

// Workout is a coach-authored definition: Workout -> Section -> Block -> Exercise.
// Sessions reference it by ID; set logs snapshot the targets they need at first write.
type Workout struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CoachID     *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"` // owning coach, nil for client-authored workouts
	Name        string              `bson:"name" json:"name"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Sections    []Section           `bson:"sections" json:"sections"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type Section struct {
	Name   string  `bson:"name" json:"name"`
	Order  int     `bson:"order" json:"order"`
	Blocks []Block `bson:"blocks" json:"blocks"`
}

type Block struct {
	Type      BlockType         `bson:"type" json:"type"`
	Title     string            `bson:"title,omitempty" json:"title,omitempty"`
	Exercises []WorkoutExercise `bson:"exercises" json:"exercises"`
}

// WorkoutExercise carries a per-set prescription. Index i of each array is set i+1.
type WorkoutExercise struct {
	ID                primitive.ObjectID `bson:"_id" json:"id"`
	Name              string             `bson:"name" json:"name"`
	Category          string             `bson:"category,omitempty" json:"category,omitempty"`
	Equipment         string             `bson:"equipment,omitempty" json:"equipment,omitempty"`
	TargetRepsBySet   []int              `bson:"targetRepsBySet,omitempty" json:"targetRepsBySet,omitempty"`
	TargetWeightBySet []*float64         `bson:"targetWeightBySet,omitempty" json:"targetWeightBySet,omitempty"`
	TargetRestBySet   []int              `bson:"targetRestBySet,omitempty" json:"targetRestBySet,omitempty"`
}

// SetCount is the number of prescribed sets.
func (e *WorkoutExercise) SetCount() int {
	n := len(e.TargetRepsBySet)
	if len(e.TargetWeightBySet) > n {
		n = len(e.TargetWeightBySet)
	}
	if len(e.TargetRestBySet) > n {
		n = len(e.TargetRestBySet)
	}
	return n
}

// TargetFor returns the prescription for a 1-based set number.
// Missing indexes yield 0 reps and no weight.
func (e *WorkoutExercise) TargetFor(setNumber int) (reps int, weight *float64) {
	i := setNumber - 1
	if i >= 0 && i < len(e.TargetRepsBySet) {
		reps = e.TargetRepsBySet[i]
	}
	if i >= 0 && i < len(e.TargetWeightBySet) && e.TargetWeightBySet[i] != nil {
		w := *e.TargetWeightBySet[i]
		weight = &w
	}
	return reps, weight
}

var ErrInvalidDefinition = errors.New("invalid workout definition")

// Validate checks the prescription arrays of a single exercise.
func (e *WorkoutExercise) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: exercise name is required", ErrInvalidDefinition)
	}
	lengths := make([]int, 0, 3)
	for _, l := range []int{len(e.TargetRepsBySet), len(e.TargetWeightBySet), len(e.TargetRestBySet)} {
		if l > 0 {
			lengths = append(lengths, l)
		}
	}
	for _, l := range lengths {
		if l != lengths[0] {
			return fmt.Errorf("%w: exercise %q has per-set arrays of different lengths", ErrInvalidDefinition, e.Name)
		}
	}
	for _, r := range e.TargetRepsBySet {
		if r < 0 {
			return fmt.Errorf("%w: exercise %q has negative target reps", ErrInvalidDefinition, e.Name)
		}
	}
	for _, w := range e.TargetWeightBySet {
		if w != nil && *w < 0 {
			return fmt.Errorf("%w: exercise %q has negative target weight", ErrInvalidDefinition, e.Name)
		}
	}
	for _, r := range e.TargetRestBySet {
		if r < 0 {
			return fmt.Errorf("%w: exercise %q has negative target rest", ErrInvalidDefinition, e.Name)
		}
	}
	return nil
}

// Validate checks the whole hierarchy.
func (w *Workout) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: workout name is required", ErrInvalidDefinition)
	}
	for _, s := range w.Sections {
		for _, b := range s.Blocks {
			if !b.Type.IsValid() {
				return fmt.Errorf("%w: unknown block type %q", ErrInvalidDefinition, b.Type)
			}
			for i := range b.Exercises {
				if err := b.Exercises[i].Validate(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// AssignExerciseIDs gives every exercise without an ID a fresh one.
func (w *Workout) AssignExerciseIDs() {
	for si := range w.Sections {
		for bi := range w.Sections[si].Blocks {
			exercises := w.Sections[si].Blocks[bi].Exercises
			for ei := range exercises {
				if exercises[ei].ID.IsZero() {
					exercises[ei].ID = primitive.NewObjectID()
				}
			}
		}
	}
}

// Exercises flattens the hierarchy in definition order.
func (w *Workout) Exercises() []WorkoutExercise {
	var out []WorkoutExercise
	for _, s := range w.Sections {
		for _, b := range s.Blocks {
			out = append(out, b.Exercises...)
		}
	}
	return out
}

func (w *Workout) FindExercise(id primitive.ObjectID) (*WorkoutExercise, bool) {
	for si := range w.Sections {
		for bi := range w.Sections[si].Blocks {
			exercises := w.Sections[si].Blocks[bi].Exercises
			for ei := range exercises {
				if exercises[ei].ID == id {
					return &exercises[ei], true
				}
			}
		}
	}
	return nil, false
}
