package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"siteaudit-backend/internal/analyses"
	"siteaudit-backend/internal/llm"
	"siteaudit-backend/internal/shared/config"
	"siteaudit-backend/internal/shared/metrics"
	"siteaudit-backend/internal/shared/server/middleware"
	"siteaudit-backend/internal/shared/server/respond"
)

// RouterDeps carries everything the router wires into routes.
type RouterDeps struct {
	Config          config.Config
	DB              *sql.DB
	AnalysisHandler *analyses.Handler
	ModelRegistry   *llm.Registry
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.DB))
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	admin := api.Group("/admin")
	admin.POST("/models/reload", reloadModelsHandler(deps.ModelRegistry))

	return r
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbState := "none"
		if database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := database.PingContext(ctx); err != nil {
				dbState = "down"
			} else {
				dbState = "up"
			}
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "db": dbState})
	}
}

// reloadModelsHandler swaps the fallback model list at runtime without a
// restart. In-flight cascades keep the snapshot they started with.
func reloadModelsHandler(registry *llm.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if registry == nil {
			respond.Error(c, http.StatusServiceUnavailable, "not_configured", "model registry not configured", nil)
			return
		}
		var req struct {
			Models []string `json:"models" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "models list is required", nil)
			return
		}
		registry.Reload(req.Models)
		respond.JSON(c, http.StatusOK, gin.H{"models": registry.Snapshot()})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
