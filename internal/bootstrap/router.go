package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/sb-works/collab-backend/internal/api/http"
	"github.com/sb-works/collab-backend/internal/api/http/middleware"
	"github.com/sb-works/collab-backend/internal/auth"
	authmw "github.com/sb-works/collab-backend/internal/auth/middleware"
	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/metrics"
	projectshttp "github.com/sb-works/collab-backend/internal/projects/http"
	"github.com/sb-works/collab-backend/internal/projects/service"
	"github.com/sb-works/collab-backend/internal/realtime"
	"github.com/sb-works/collab-backend/internal/realtime/ws"
	"github.com/sb-works/collab-backend/internal/uploads"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Hub            *realtime.Hub
	Verifier       auth.Verifier
	Lifecycle      *service.LifecycleService
	State          *service.StateService
	Gateway        *ws.Gateway
	// Uploads is nil when no bucket is configured.
	Uploads *uploads.Service
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		logging.GinRecovery(),
		middleware.RequestIDMiddleware(),
		logging.GinLogger(),
		metrics.GinMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     dep.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis, dep.Hub)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", dep.Gateway.Handle)

	api := r.Group("/api/v1")
	api.Use(authmw.RequireCaller(dep.Verifier))

	projectshttp.New(dep.Lifecycle, dep.State).Register(api)

	if dep.Uploads != nil {
		uploads.NewHandler(dep.Uploads).Register(api)
	} else {
		api.POST("/uploads", func(c *gin.Context) {
			c.JSON(http.StatusNotImplemented, gin.H{"ok": false, "error": "uploads are not configured", "code": "not_configured"})
		})
	}

	return r
}
