package router

import (
	"net/http"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/handler"
	"github.com/funmath/funmath-backend/internal/middleware"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Exam        *handler.ExamHandler
	Learner     *handler.LearnerHandler
	Leaderboard *handler.LeaderboardHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(auth middleware.TokenValidator, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; otherwise allow all for dev.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "server_time": time.Now().UTC()})
	})

	requireJWT := middleware.RequireJWT(auth)
	authors := middleware.RequireRole(model.RoleTeacher, model.RoleAdmin)

	// ─── 0. Public ─────────────────────────────────────────────────────
	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", handlers.Auth.Login)

	// ─── 1. Any authenticated user ─────────────────────────────────────
	authed := v1.Group("")
	authed.Use(requireJWT)
	{
		authed.GET("/auth/me", handlers.Auth.Me)

		authed.GET("/exams", handlers.Exam.ListExams)
		authed.GET("/exams/:id", handlers.Exam.GetExam)
		authed.GET("/exams/:id/leaderboard", handlers.Leaderboard.GetLeaderboard)
		authed.GET("/exams/:id/leaderboard/stream", handlers.Leaderboard.StreamLeaderboard)
	}

	// ─── 2. Authoring (teacher, admin) ─────────────────────────────────
	authoring := v1.Group("/exams")
	authoring.Use(requireJWT, authors)
	{
		authoring.POST("", handlers.Exam.CreateExam)
		authoring.PUT("/:id", handlers.Exam.UpdateExam)
		authoring.DELETE("/:id", handlers.Exam.DeleteExam)
	}

	// ─── 3. Moderation (admin) ─────────────────────────────────────────
	moderation := v1.Group("/exams")
	moderation.Use(requireJWT, middleware.RequireRole(model.RoleAdmin))
	{
		moderation.POST("/:id/moderate", handlers.Exam.ModerateExam)
	}

	// ─── 4. Learner attempts ───────────────────────────────────────────
	learner := v1.Group("/learner/exams")
	learner.Use(requireJWT, middleware.RequireRole(model.RoleLearner))
	{
		learner.GET("/:id", handlers.Learner.GetExam)
		learner.POST("/:id/start", handlers.Learner.StartSession)
		learner.GET("/:id/progress", handlers.Learner.GetProgress)
		learner.PUT("/:id/progress", handlers.Learner.SaveProgress)
		learner.POST("/:id/submit", handlers.Learner.Submit)
		learner.GET("/:id/result", handlers.Learner.GetResult)
	}

	// ─── 5. WebSocket ──────────────────────────────────────────────────
	wsGroup := router.Group("/ws/v1/learner")
	wsGroup.Use(requireJWT, middleware.RequireRole(model.RoleLearner))
	{
		wsGroup.GET("/exams/:id/stream", handlers.WS.ExamStream)
	}

	return router
}
