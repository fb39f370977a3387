package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrClientNotRole         = errors.New("user found but is not a client")
	ErrClientAlreadyAssigned = errors.New("client is already assigned to a coach")
)

// CoachService covers client management and the workout definition store.
type CoachService interface {
	AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error)
	GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)

	CreateWorkout(ctx context.Context, coachID primitive.ObjectID, workout *domain.Workout) (*domain.Workout, error)
	// GetWorkout is allowed for the owning coach and for the clients that coach manages.
	GetWorkout(ctx context.Context, requesterID, workoutID primitive.ObjectID) (*domain.Workout, error)
	ListWorkoutsByCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Workout, error)
}

type coachService struct {
	userRepo    repository.UserRepository
	workoutRepo repository.WorkoutRepository
}

func NewCoachService(userRepo repository.UserRepository, workoutRepo repository.WorkoutRepository) CoachService {
	return &coachService{
		userRepo:    userRepo,
		workoutRepo: workoutRepo,
	}
}

// === Client Management ===

// AddClientByEmail finds a client by email and assigns them to the coach.
func (s *coachService) AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error) {
	clientEmail = strings.ToLower(strings.TrimSpace(clientEmail))
	if coachID.IsZero() || clientEmail == "" {
		return nil, validationErr("coach ID and client email are required")
	}

	client, err := s.userRepo.GetByEmail(ctx, clientEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.IsClient() {
		return nil, ErrClientNotRole
	}

	if client.CoachID != nil && !client.CoachID.IsZero() {
		if *client.CoachID == coachID {
			client.PasswordHash = ""
			return client, nil
		}
		return nil, ErrClientAlreadyAssigned
	}

	if err := s.userRepo.SetCoachForClient(ctx, client.ID, coachID); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"coach_id": coachID.Hex(), "client_id": client.ID.Hex()}).Info("client linked to coach")

	client.CoachID = &coachID
	client.PasswordHash = ""
	return client, nil
}

func (s *coachService) GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	clients, err := s.userRepo.GetClientsByCoachID(ctx, coachID)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].PasswordHash = ""
	}
	return clients, nil
}

// === Workout Definitions ===

func (s *coachService) CreateWorkout(ctx context.Context, coachID primitive.ObjectID, workout *domain.Workout) (_ *domain.Workout, err error) {
	ctx, span := tracer.Start(ctx, "service.coach.createWorkout")
	defer func() { endSpan(span, err) }()

	if workout == nil {
		return nil, validationErr("workout definition is required")
	}
	if err := workout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	workout.CoachID = &coachID
	for i := range workout.Sections {
		if workout.Sections[i].Order == 0 {
			workout.Sections[i].Order = i + 1
		}
	}
	workout.AssignExerciseIDs()

	id, err := s.workoutRepo.Create(ctx, workout)
	if err != nil {
		return nil, fmt.Errorf("create workout: %w", err)
	}
	workout.ID = id
	return workout, nil
}

func (s *coachService) GetWorkout(ctx context.Context, requesterID, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	if err := s.checkWorkoutAccess(ctx, requesterID, workout); err != nil {
		return nil, err
	}
	return workout, nil
}

func (s *coachService) checkWorkoutAccess(ctx context.Context, requesterID primitive.ObjectID, workout *domain.Workout) error {
	return checkWorkoutAccess(ctx, s.userRepo, requesterID, workout)
}

// checkWorkoutAccess allows the owning coach and that coach's clients.
func checkWorkoutAccess(ctx context.Context, users repository.UserRepository, requesterID primitive.ObjectID, workout *domain.Workout) error {
	if workout.CoachID == nil {
		return nil
	}
	if *workout.CoachID == requesterID {
		return nil
	}
	user, err := users.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if user.IsClient() && user.CoachID != nil && *user.CoachID == *workout.CoachID {
		return nil
	}
	return ErrUnauthorized
}

func (s *coachService) ListWorkoutsByCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Workout, error) {
	return s.workoutRepo.GetByCoachID(ctx, coachID)
}
