package api

import (
	"net/http"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth         service.AuthService
	Coach        service.CoachService
	Sessions     service.SessionService
	SetLogs      service.SetLogService
	Scheduler    service.SchedulerService
	Gamification service.GamificationService
	Videos       service.VideoService
}

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	services Services,
	metricsManager *metrics.Manager,
	gatherer prometheus.Gatherer,
) {
	authHandler := NewAuthHandler(services.Auth)
	coachHandler := NewCoachHandler(services.Coach, services.Scheduler, services.Sessions)
	sessionHandler := NewSessionHandler(services.Sessions, services.SetLogs, services.Videos)
	gamificationHandler := NewGamificationHandler(services.Gamification)

	router.Use(LogRequest(), RequestMetrics(metricsManager))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, ok := requester(c)
			if !ok {
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})
		protected.GET("/notifications", gamificationHandler.ListNotifications)
		protected.GET("/workouts/:workoutId", coachHandler.GetWorkout)

		// Set videos are readable by the client and the client's coach.
		protected.GET("/sessions/:sessionId/exercises/:exerciseId/sets/:setNumber/video", sessionHandler.GetSetVideoURL)

		// --- Coach Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			coachGroup.POST("/clients", coachHandler.AddClientByEmail)
			coachGroup.GET("/clients", coachHandler.GetManagedClients)
			coachGroup.GET("/clients/:clientId/sessions", coachHandler.ListClientSessions)
			coachGroup.GET("/clients/:clientId/profile", gamificationHandler.GetProfile)
			coachGroup.GET("/clients/:clientId/sweat-score", gamificationHandler.GetSweatScore)
			coachGroup.POST("/clients/:clientId/days/:day/close", gamificationHandler.CloseDay)

			coachGroup.POST("/workouts", coachHandler.CreateWorkout)
			coachGroup.GET("/workouts", coachHandler.ListWorkouts)
			coachGroup.POST("/workouts/:workoutId/schedule", coachHandler.ScheduleAssignment)

			coachGroup.GET("/notes", gamificationHandler.ListCoachNotes)
		}

		// --- Client Routes ---
		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			clientGroup.POST("/workouts/:workoutId/sessions", sessionHandler.StartAdHocSession)
			clientGroup.GET("/sessions", sessionHandler.ListMySessions)
			clientGroup.GET("/sessions/:sessionId", sessionHandler.GetSession)
			clientGroup.POST("/sessions/:sessionId/complete", sessionHandler.CompleteSession)
			clientGroup.POST("/sessions/:sessionId/abandon", sessionHandler.AbandonSession)

			sets := clientGroup.Group("/sessions/:sessionId/exercises/:exerciseId/sets")
			{
				sets.POST("", sessionHandler.AddExtraSet)
				sets.PUT("/:setNumber", sessionHandler.LogSet)
				sets.POST("/:setNumber/video/upload-url", sessionHandler.RequestSetVideoUpload)
				sets.PUT("/:setNumber/video", sessionHandler.ConfirmSetVideo)
			}

			clientGroup.POST("/habits", gamificationHandler.LogHabit)
			clientGroup.GET("/profile", gamificationHandler.GetProfile)
			clientGroup.GET("/sweat-score", gamificationHandler.GetSweatScore)
			clientGroup.POST("/days/:day/close", gamificationHandler.CloseDay)
		}
	}
}
