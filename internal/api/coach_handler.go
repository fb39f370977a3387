package api

import (
	"fmt"
	"net/http"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CoachHandler struct {
	coachService     service.CoachService
	schedulerService service.SchedulerService
	sessionService   service.SessionService
}

func NewCoachHandler(
	coachService service.CoachService,
	schedulerService service.SchedulerService,
	sessionService service.SessionService,
) *CoachHandler {
	return &CoachHandler{
		coachService:     coachService,
		schedulerService: schedulerService,
		sessionService:   sessionService,
	}
}

// --- DTOs ---

type AddClientRequest struct {
	ClientEmail string `json:"clientEmail" binding:"required,email"`
}

type CreateWorkoutRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Sections    []domain.Section `json:"sections" binding:"required,min=1"`
}

type ScheduleRequest struct {
	ClientID   string              `json:"clientId" binding:"required"`
	AnchorDate string              `json:"anchorDate" binding:"required"` // YYYY-MM-DD
	Recurrence *service.Recurrence `json:"recurrence"`
}

// --- Client Management ---

// AddClientByEmail godoc
// @Summary Add a client to the coach's roster by email
// @Description Associates an existing client user with the authenticated coach.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientRequest body AddClientRequest true "Client's email"
// @Success 200 {object} UserResponse "Client successfully added/associated"
// @Failure 400 {object} gin.H "Invalid input, or the user is not a client"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Client already has a coach"
// @Router /coach/clients [post]
func (h *CoachHandler) AddClientByEmail(c *gin.Context) {
	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := requester(c)
	if !ok {
		return
	}

	client, err := h.coachService.AddClientByEmail(c.Request.Context(), coachID, req.ClientEmail)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(client))
}

// GetManagedClients godoc
// @Summary Get the coach's managed clients
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse "List of managed clients"
// @Router /coach/clients [get]
func (h *CoachHandler) GetManagedClients(c *gin.Context) {
	coachID, ok := requester(c)
	if !ok {
		return
	}

	clients, err := h.coachService.GetManagedClients(c.Request.Context(), coachID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(clients))
}

// ListClientSessions godoc
// @Summary List a managed client's sessions
// @Tags Coach
// @Produce json
// @Param clientId path string true "Client ID"
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} domain.WorkoutSession
// @Router /coach/clients/{clientId}/sessions [get]
func (h *CoachHandler) ListClientSessions(c *gin.Context) {
	coachID, ok := requester(c)
	if !ok {
		return
	}
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}

	sessions, err := h.sessionService.ListClientSessions(c.Request.Context(), coachID, clientID, c.Query("from"), c.Query("to"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []domain.WorkoutSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// --- Workout Definitions ---

// CreateWorkout godoc
// @Summary Create a workout definition
// @Description Exercise IDs are assigned by the server.
// @Tags Coach
// @Accept json
// @Produce json
// @Param workout body CreateWorkoutRequest true "Workout definition"
// @Success 201 {object} domain.Workout
// @Failure 400 {object} gin.H "Invalid definition"
// @Router /coach/workouts [post]
func (h *CoachHandler) CreateWorkout(c *gin.Context) {
	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	coachID, ok := requester(c)
	if !ok {
		return
	}

	workout, err := h.coachService.CreateWorkout(c.Request.Context(), coachID, &domain.Workout{
		Name:        req.Name,
		Description: req.Description,
		Sections:    req.Sections,
	})
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workout)
}

// ListWorkouts godoc
// @Summary List the coach's workouts
// @Tags Coach
// @Produce json
// @Success 200 {array} domain.Workout
// @Router /coach/workouts [get]
func (h *CoachHandler) ListWorkouts(c *gin.Context) {
	coachID, ok := requester(c)
	if !ok {
		return
	}
	workouts, err := h.coachService.ListWorkoutsByCoach(c.Request.Context(), coachID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	if workouts == nil {
		workouts = []domain.Workout{}
	}
	c.JSON(http.StatusOK, workouts)
}

// GetWorkout godoc
// @Summary Get a workout definition
// @Description Open to the owning coach and that coach's clients.
// @Tags Workouts
// @Produce json
// @Param workoutId path string true "Workout ID"
// @Success 200 {object} domain.Workout
// @Router /workouts/{workoutId} [get]
func (h *CoachHandler) GetWorkout(c *gin.Context) {
	requesterID, ok := requester(c)
	if !ok {
		return
	}
	workoutID, ok := pathObjectID(c, "workoutId")
	if !ok {
		return
	}
	workout, err := h.coachService.GetWorkout(c.Request.Context(), requesterID, workoutID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

// ScheduleAssignment godoc
// @Summary Schedule a workout for a client on a day or a weekly recurrence
// @Description Re-running the same request creates nothing new.
// @Tags Coach
// @Accept json
// @Produce json
// @Param workoutId path string true "Workout ID"
// @Param body body ScheduleRequest true "Client, anchor date and recurrence"
// @Success 200 {object} service.ScheduleResult
// @Failure 403 {object} gin.H "Workout or client not managed by the coach"
// @Router /coach/workouts/{workoutId}/schedule [post]
func (h *CoachHandler) ScheduleAssignment(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	coachID, ok := requester(c)
	if !ok {
		return
	}
	workoutID, ok := pathObjectID(c, "workoutId")
	if !ok {
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format.")
		return
	}

	result, err := h.schedulerService.ScheduleAssignment(c.Request.Context(), coachID, workoutID, clientID, req.AnchorDate, req.Recurrence)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MapUsersToResponse converts a slice of domain.User to UserResponse DTOs.
func MapUsersToResponse(users []domain.User) []UserResponse {
	userResponses := make([]UserResponse, len(users))
	for i := range users {
		userResponses[i] = MapUserToResponse(&users[i])
	}
	return userResponses
}
