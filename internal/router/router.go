package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/handler"
	"github.com/stemsi/exampool/internal/middleware"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/response"
	"github.com/stemsi/exampool/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Exam    *handler.ExamHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by the middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Test-taker Group (JWT + Rate Limit) ────────────────────────
	userAPI := router.Group("/api/v1")
	userAPI.Use(middleware.RequireUserJWT(authService))
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit, time.Minute)
		userAPI.Use(limiter.Middleware())
	}
	{
		userAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)
		userAPI.GET("/exams/:exam_id/validate", handlers.Exam.ValidatePool)

		userAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		userAPI.GET("/attempts/:attempt_id/questions/:question_id", handlers.Attempt.FetchQuestion)
		userAPI.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.PutAnswer)
		userAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitAttempt)
		userAPI.GET("/attempts/:attempt_id/result", handlers.Attempt.GetResult)
	}

	// ─── 2. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/exams",
			middleware.RequirePermission(string(model.PermissionExamsWrite)),
			handlers.Exam.CreateExam,
		)
		adminAPI.POST("/exams/:exam_id/refresh-pool",
			middleware.RequirePermission(string(model.PermissionExamsWrite)),
			handlers.Exam.RefreshPool,
		)
	}

	return router
}
