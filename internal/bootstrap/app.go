// Package bootstrap wires configuration, storage, the LLM stack and HTTP
// routing into runnable processes.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"siteaudit-backend/internal/analyses"
	"siteaudit-backend/internal/llm"
	"siteaudit-backend/internal/llm/openrouter"
	"siteaudit-backend/internal/queue"
	"siteaudit-backend/internal/shared/config"
	"siteaudit-backend/internal/shared/server"
	"siteaudit-backend/internal/shared/storage/db"
	"siteaudit-backend/internal/snapshots"
	"siteaudit-backend/internal/webhook"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Queue           queue.Client
	ModelRegistry   *llm.Registry
	SnapshotsRepo   snapshots.Repo
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Notifier        *webhook.Notifier
}

// Role selects process-specific wiring.
type Role int

const (
	RoleAPI Role = iota
	RoleWorker
)

// Build prepares shared dependencies and, for the API role, the router.
func Build(cfg config.Config, role Role) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	if role == RoleAPI {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:          cfg,
			DB:              sqlDB,
			AnalysisHandler: app.AnalysisHandler,
			ModelRegistry:   app.ModelRegistry,
		})
	}

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	defaults := db.DefaultServerOptions()
	if role == RoleWorker {
		defaults = db.DefaultWorkerOptions()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

// buildQueue returns nil when no queue is configured; the API then runs the
// pipeline on its in-process pool. The worker never enqueues.
func buildQueue(ctx context.Context, cfg config.Config, role Role) (queue.Client, error) {
	if role == RoleWorker {
		return nil, nil
	}
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildServices(app *App) error {
	cfg := app.Config

	var snapRepo snapshots.Repo
	var analysisRepo analyses.Repo
	if app.DB != nil {
		snapRepo = &snapshots.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		snapRepo = snapshots.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	registry := llm.NewRegistry(cfg.LLMFallbackModels)

	var invoker analyses.Invoker
	if strings.TrimSpace(cfg.OpenRouterAPIKey) != "" {
		client, err := openrouter.NewClient(cfg.OpenRouterAPIKey,
			openrouter.WithTimeout(time.Duration(cfg.LLMTimeoutSeconds)*time.Second))
		if err != nil {
			return err
		}
		cascade := llm.NewCascade(client, registry)
		cascade.MaxCandidates = cfg.LLMMaxCandidates
		cascade.RateLimitRetries = cfg.LLMRateLimitRetries
		invoker = cascade
	} else {
		if !isDevLike(cfg.Env) {
			return fmt.Errorf("OPENROUTER_API_KEY is required")
		}
		log.Printf("bootstrap: OPENROUTER_API_KEY empty; analyses will fail at the LLM step")
	}

	notifier := webhook.NewNotifier(cfg.WebhookURL)

	svc := &analyses.Service{
		Repo:               analysisRepo,
		Snapshots:          snapRepo,
		LLM:                invoker,
		Queue:              app.Queue,
		Dispatcher:         analyses.NewDispatcher(cfg.PipelineConcurrency),
		Notifier:           notifier,
		DefaultTemperature: cfg.LLMTemperature,
	}

	app.ModelRegistry = registry
	app.SnapshotsRepo = snapRepo
	app.AnalysesRepo = analysisRepo
	app.AnalysesService = svc
	app.AnalysisHandler = analyses.NewHandler(svc)
	app.Notifier = notifier
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
