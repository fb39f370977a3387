package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/repository/memory"
	"alcyxob/workout-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	store := memory.NewStore()
	repos := service.Repositories{
		Users:         store.Users(),
		Workouts:      store.Workouts(),
		Sessions:      store.Sessions(),
		SetLogs:       store.SetLogs(),
		Profiles:      store.Profiles(),
		Notifications: store.Notifications(),
		CoachNotes:    store.CoachNotes(),
		Habits:        store.Habits(),
		Tx:            store,
	}
	settings := service.Settings{
		BaseXP:          50,
		ExerciseBonusXP: 10,
		ScheduleHour:    9,
		Location:        time.UTC,
		Now:             func() time.Time { return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC) },
	}

	registry := prometheus.NewRegistry()
	metricsManager := metrics.NewManager("engine", "test", registry)
	dispatcher := events.NewDispatcher()
	notifications := service.NewNotificationSink(repos.Notifications)
	service.NewPainHook(repos.Workouts, notifications, service.NewCoachNoteSink(repos.CoachNotes), metricsManager).Register(dispatcher)
	service.NewScoreNotifier(notifications, metricsManager).Register(dispatcher)

	scoring := service.NewScoringEngine(repos.Profiles, settings)
	services := Services{
		Auth:         service.NewAuthService(repos.Users, testSecret, time.Hour),
		Coach:        service.NewCoachService(repos.Users, repos.Workouts),
		Sessions:     service.NewSessionService(repos, scoring, dispatcher, metricsManager, settings),
		SetLogs:      service.NewSetLogService(repos, dispatcher, metricsManager),
		Scheduler:    service.NewSchedulerService(repos, notifications, dispatcher, metricsManager, settings),
		Gamification: service.NewGamificationService(repos, scoring, dispatcher, settings),
		Videos:       service.NewVideoService(repos, nil),
	}

	router := gin.New()
	SetupRoutes(router, testSecret, services, metricsManager, registry)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func registerAndLogin(t *testing.T, router http.Handler, name, email string, role domain.Role) LoginResponse {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: name, Email: email, Password: "password123", Role: role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[LoginResponse](t, w)
}

func TestRoutes_CoachPlansClientTrains(t *testing.T) {
	router := newTestRouter(t)
	coach := registerAndLogin(t, router, "Coach", "coach@example.com", domain.RoleCoach)
	client := registerAndLogin(t, router, "Client", "client@example.com", domain.RoleClient)

	w := doJSON(t, router, http.MethodPost, "/api/v1/coach/clients", coach.Token, AddClientRequest{ClientEmail: "client@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	linked := decode[UserResponse](t, w)
	require.NotNil(t, linked.CoachID)
	assert.Equal(t, coach.User.ID, *linked.CoachID)

	w = doJSON(t, router, http.MethodPost, "/api/v1/coach/workouts", coach.Token, gin.H{
		"name": "Leg day",
		"sections": []gin.H{{
			"name": "Main",
			"blocks": []gin.H{{
				"type": "STANDARD_SETS_REPS",
				"exercises": []gin.H{{
					"name":              "Squat",
					"targetRepsBySet":   []int{8, 8},
					"targetWeightBySet": []float64{60, 65},
				}},
			}},
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	workout := decode[domain.Workout](t, w)
	squat := workout.Exercises()[0]
	require.False(t, squat.ID.IsZero())

	w = doJSON(t, router, http.MethodPost, "/api/v1/coach/workouts/"+workout.ID.Hex()+"/schedule", coach.Token, ScheduleRequest{
		ClientID:   client.User.ID,
		AnchorDate: "2026-03-02",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[service.ScheduleResult](t, w).SessionsCreated)

	w = doJSON(t, router, http.MethodGet, "/api/v1/client/sessions?from=2026-03-01&to=2026-03-31", client.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessions := decode[[]domain.WorkoutSession](t, w)
	require.Len(t, sessions, 1)
	sessionPath := "/api/v1/client/sessions/" + sessions[0].ID.Hex()

	w = doJSON(t, router, http.MethodGet, sessionPath, client.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[service.SessionView](t, w)
	require.Len(t, view.Exercises, 1)
	assert.Equal(t, 2, view.Exercises[0].PrescribedSets)

	setsPath := sessionPath + "/exercises/" + squat.ID.Hex() + "/sets"
	w = doJSON(t, router, http.MethodPut, setsPath+"/1", client.Token, gin.H{
		"actualReps": 8, "actualWeight": 60, "feelingCode": "PAIN",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	logged := decode[domain.ExerciseSetLog](t, w)
	assert.Equal(t, 8, logged.TargetReps)
	assert.Equal(t, domain.FeelingPain, logged.FeelingCode)

	w = doJSON(t, router, http.MethodGet, "/api/v1/coach/notes", coach.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	notes := decode[[]domain.CoachNote](t, w)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].AutoSuggested)

	w = doJSON(t, router, http.MethodPost, setsPath, client.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	extra := decode[domain.ExerciseSetLog](t, w)
	assert.Equal(t, 3, extra.SetNumber)
	assert.True(t, extra.IsExtraSet)

	w = doJSON(t, router, http.MethodPost, sessionPath+"/complete", client.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50, decode[service.CompletionResult](t, w).XPEarned)

	w = doJSON(t, router, http.MethodPost, sessionPath+"/complete", client.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/coach/clients/"+client.User.ID+"/profile", coach.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50, decode[domain.GamificationProfile](t, w).XP)
}

func TestRoutes_AccessControl(t *testing.T) {
	router := newTestRouter(t)
	client := registerAndLogin(t, router, "Client", "client@example.com", domain.RoleClient)

	w := doJSON(t, router, http.MethodGet, "/api/v1/client/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/client/sessions", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/coach/clients", client.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/client/sessions/not-an-id/complete", client.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/client/sessions?from=yesterday", client.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: "Again", Email: "client@example.com", Password: "password123", Role: domain.RoleClient,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "client@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_HabitsAndStorageDisabled(t *testing.T) {
	router := newTestRouter(t)
	client := registerAndLogin(t, router, "Client", "client@example.com", domain.RoleClient)
	at := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	w := doJSON(t, router, http.MethodPost, "/api/v1/client/habits", client.Token, LogHabitRequest{Habit: "Water", At: &at})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[service.HabitResult](t, w).Counted)

	w = doJSON(t, router, http.MethodPost, "/api/v1/client/habits", client.Token, LogHabitRequest{Habit: " water ", At: &at})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[service.HabitResult](t, w).Counted)

	w = doJSON(t, router, http.MethodGet, "/api/v1/client/sweat-score?asOf=2026-03-02", client.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/notifications?limit=-1", client.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Storage is not configured in the test router.
	path := "/api/v1/client/sessions/" + client.User.ID + "/exercises/" + client.User.ID + "/sets/1/video/upload-url"
	w = doJSON(t, router, http.MethodPost, path, client.Token, VideoUploadRequest{ContentType: "video/mp4"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_PingAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "engine_test_request_duration_seconds")
}
