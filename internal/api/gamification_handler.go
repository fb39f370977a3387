package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GamificationHandler serves habits, streaks, profiles and the inbox.
type GamificationHandler struct {
	gamificationService service.GamificationService
}

func NewGamificationHandler(gamificationService service.GamificationService) *GamificationHandler {
	return &GamificationHandler{gamificationService: gamificationService}
}

type LogHabitRequest struct {
	Habit string     `json:"habit" binding:"required"`
	At    *time.Time `json:"at"` // defaults to now
}

// LogHabit godoc
// @Summary Check in a daily habit
// @Description Logging the same habit twice on one day counts once.
// @Tags Gamification
// @Accept json
// @Produce json
// @Param body body LogHabitRequest true "Habit check-in"
// @Success 200 {object} service.HabitResult
// @Router /client/habits [post]
func (h *GamificationHandler) LogHabit(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	var req LogHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}

	result, err := h.gamificationService.LogHabit(c.Request.Context(), clientID, req.Habit, at)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProfile godoc
// @Summary Get the XP, level, streak and badges of a client
// @Tags Gamification
// @Produce json
// @Success 200 {object} domain.GamificationProfile
// @Router /client/profile [get]
// @Router /coach/clients/{clientId}/profile [get]
func (h *GamificationHandler) GetProfile(c *gin.Context) {
	requesterID, clientID, ok := clientScope(c)
	if !ok {
		return
	}
	profile, err := h.gamificationService.GetProfile(c.Request.Context(), requesterID, clientID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetSweatScore godoc
// @Summary Get the 7-day Sweat Score
// @Tags Gamification
// @Produce json
// @Param asOf query string false "Last day of the window, YYYY-MM-DD (default today)"
// @Success 200 {object} service.SweatScore
// @Router /client/sweat-score [get]
// @Router /coach/clients/{clientId}/sweat-score [get]
func (h *GamificationHandler) GetSweatScore(c *gin.Context) {
	requesterID, clientID, ok := clientScope(c)
	if !ok {
		return
	}
	score, err := h.gamificationService.GetSweatScore(c.Request.Context(), requesterID, clientID, c.Query("asOf"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// CloseDay godoc
// @Summary Close a past day, resetting the streak when it had no activity
// @Tags Gamification
// @Produce json
// @Param day path string true "Day, YYYY-MM-DD, before today"
// @Success 200 {object} domain.GamificationProfile
// @Router /client/days/{day}/close [post]
// @Router /coach/clients/{clientId}/days/{day}/close [post]
func (h *GamificationHandler) CloseDay(c *gin.Context) {
	requesterID, clientID, ok := clientScope(c)
	if !ok {
		return
	}
	profile, err := h.gamificationService.CloseDay(c.Request.Context(), requesterID, clientID, c.Param("day"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListNotifications godoc
// @Summary List the caller's notifications, newest first
// @Tags Inbox
// @Produce json
// @Param limit query int false "Maximum number of entries"
// @Success 200 {array} domain.Notification
// @Router /notifications [get]
func (h *GamificationHandler) ListNotifications(c *gin.Context) {
	recipientID, ok := requester(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	notifications, err := h.gamificationService.ListNotifications(c.Request.Context(), recipientID, limit)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

// ListCoachNotes godoc
// @Summary List the coach's notes, newest first
// @Tags Coach
// @Produce json
// @Param limit query int false "Maximum number of entries"
// @Success 200 {array} domain.CoachNote
// @Router /coach/notes [get]
func (h *GamificationHandler) ListCoachNotes(c *gin.Context) {
	coachID, ok := requester(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	notes, err := h.gamificationService.ListCoachNotes(c.Request.Context(), coachID, limit)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	if notes == nil {
		notes = []domain.CoachNote{}
	}
	c.JSON(http.StatusOK, notes)
}

// clientScope resolves (requester, client) for routes shared by the client and the
// coach: under /coach the client comes from the path, otherwise it is the caller.
func clientScope(c *gin.Context) (requesterID, clientID primitive.ObjectID, ok bool) {
	if requesterID, ok = requester(c); !ok {
		return
	}
	if c.Param("clientId") == "" {
		return requesterID, requesterID, true
	}
	clientID, ok = pathObjectID(c, "clientId")
	return
}

// queryLimit reads ?limit=; zero lets the service pick its default.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid limit, expected a positive number.")
		return 0, false
	}
	return limit, true
}
