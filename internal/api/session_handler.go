package api

import (
	"fmt"
	"net/http"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionHandler serves the client's live workout: sessions, set logs and set videos.
type SessionHandler struct {
	sessionService service.SessionService
	setLogService  service.SetLogService
	videoService   service.VideoService
}

func NewSessionHandler(
	sessionService service.SessionService,
	setLogService service.SetLogService,
	videoService service.VideoService,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		setLogService:  setLogService,
		videoService:   videoService,
	}
}

type VideoUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type VideoConfirmRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type VideoURLResponse struct {
	URL string `json:"url"`
}

// StartAdHocSession godoc
// @Summary Start (or resume) today's session for a workout
// @Tags Sessions
// @Produce json
// @Param workoutId path string true "Workout ID"
// @Success 200 {object} service.SessionView
// @Failure 403 {object} gin.H "Workout not available to the client"
// @Failure 404 {object} gin.H "Workout not found"
// @Router /client/workouts/{workoutId}/sessions [post]
func (h *SessionHandler) StartAdHocSession(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	workoutID, ok := pathObjectID(c, "workoutId")
	if !ok {
		return
	}

	view, err := h.sessionService.StartAdHocSession(c.Request.Context(), clientID, workoutID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListMySessions godoc
// @Summary List the client's sessions, optionally bounded by day
// @Tags Sessions
// @Produce json
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} domain.WorkoutSession
// @Router /client/sessions [get]
func (h *SessionHandler) ListMySessions(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListClientSessions(c.Request.Context(), clientID, clientID, c.Query("from"), c.Query("to"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []domain.WorkoutSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary Open a session with its workout, set logs and per-exercise progress
// @Tags Sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.SessionView
// @Router /client/sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	view, err := h.sessionService.StartOrFetchSession(c.Request.Context(), clientID, sessionID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CompleteSession godoc
// @Summary Complete a session and apply scoring
// @Tags Sessions
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.CompletionResult
// @Failure 409 {object} gin.H "Session is not in progress"
// @Router /client/sessions/{sessionId}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	result, err := h.sessionService.CompleteSession(c.Request.Context(), clientID, sessionID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AbandonSession godoc
// @Summary Abandon an in-progress session
// @Tags Sessions
// @Param sessionId path string true "Session ID"
// @Success 204
// @Failure 409 {object} gin.H "Session is not in progress"
// @Router /client/sessions/{sessionId}/abandon [post]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	if err := h.sessionService.AbandonSession(c.Request.Context(), clientID, sessionID); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogSet godoc
// @Summary Create or update one set log (autosave)
// @Description Only the fields present in the body are written.
// @Tags Sets
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param exerciseId path string true "Workout exercise ID"
// @Param setNumber path int true "1-based set number"
// @Param patch body domain.SetLogPatch true "Fields to write"
// @Success 200 {object} domain.ExerciseSetLog
// @Router /client/sessions/{sessionId}/exercises/{exerciseId}/sets/{setNumber} [put]
func (h *SessionHandler) LogSet(c *gin.Context) {
	clientID, sessionID, exerciseID, setNumber, ok := setPath(c)
	if !ok {
		return
	}
	var patch domain.SetLogPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	stored, err := h.setLogService.LogSet(c.Request.Context(), clientID, sessionID, exerciseID, setNumber, patch)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

// AddExtraSet godoc
// @Summary Append an extra set beyond the prescription
// @Tags Sets
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param exerciseId path string true "Workout exercise ID"
// @Success 201 {object} domain.ExerciseSetLog
// @Router /client/sessions/{sessionId}/exercises/{exerciseId}/sets [post]
func (h *SessionHandler) AddExtraSet(c *gin.Context) {
	clientID, ok := requester(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	exerciseID, ok := pathObjectID(c, "exerciseId")
	if !ok {
		return
	}

	stored, err := h.setLogService.AddExtraSet(c.Request.Context(), clientID, sessionID, exerciseID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// RequestSetVideoUpload godoc
// @Summary Get a presigned URL to upload a video for one set
// @Tags Sets
// @Accept json
// @Produce json
// @Param body body VideoUploadRequest true "Video content type"
// @Success 200 {object} service.UploadURLResponse
// @Failure 503 {object} gin.H "File storage disabled"
// @Router /client/sessions/{sessionId}/exercises/{exerciseId}/sets/{setNumber}/video/upload-url [post]
func (h *SessionHandler) RequestSetVideoUpload(c *gin.Context) {
	clientID, sessionID, exerciseID, setNumber, ok := setPath(c)
	if !ok {
		return
	}
	var req VideoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	resp, err := h.videoService.RequestSetVideoUpload(c.Request.Context(), clientID, sessionID, exerciseID, setNumber, req.ContentType)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmSetVideo godoc
// @Summary Attach an uploaded video to a set log
// @Tags Sets
// @Accept json
// @Produce json
// @Param body body VideoConfirmRequest true "Object key returned by upload-url"
// @Success 200 {object} domain.ExerciseSetLog
// @Router /client/sessions/{sessionId}/exercises/{exerciseId}/sets/{setNumber}/video [put]
func (h *SessionHandler) ConfirmSetVideo(c *gin.Context) {
	clientID, sessionID, exerciseID, setNumber, ok := setPath(c)
	if !ok {
		return
	}
	var req VideoConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	stored, err := h.videoService.ConfirmSetVideo(c.Request.Context(), clientID, sessionID, exerciseID, setNumber, req.ObjectKey)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

// GetSetVideoURL godoc
// @Summary Get a presigned download URL for a set video
// @Tags Sets
// @Produce json
// @Success 200 {object} VideoURLResponse
// @Router /sessions/{sessionId}/exercises/{exerciseId}/sets/{setNumber}/video [get]
func (h *SessionHandler) GetSetVideoURL(c *gin.Context) {
	requesterID, sessionID, exerciseID, setNumber, ok := setPath(c)
	if !ok {
		return
	}

	url, err := h.videoService.GetSetVideoURL(c.Request.Context(), requesterID, sessionID, exerciseID, setNumber)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, VideoURLResponse{URL: url})
}

func setPath(c *gin.Context) (requesterID, sessionID, exerciseID primitive.ObjectID, setNumber int, ok bool) {
	if requesterID, ok = requester(c); !ok {
		return
	}
	if sessionID, ok = pathObjectID(c, "sessionId"); !ok {
		return
	}
	if exerciseID, ok = pathObjectID(c, "exerciseId"); !ok {
		return
	}
	setNumber, ok = pathInt(c, "setNumber")
	return
}
