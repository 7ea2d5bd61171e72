package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"

	"caption-backend/internal/intake"
	"caption-backend/internal/ledger"
	"caption-backend/internal/llm"
	"caption-backend/internal/llm/gemini"
	"caption-backend/internal/notify"
	"caption-backend/internal/preview"
	"caption-backend/internal/services/health"
	"caption-backend/internal/sessions"
	"caption-backend/internal/shared/config"
	"caption-backend/internal/shared/server"
	"caption-backend/internal/shared/storage/db"
	"caption-backend/internal/shared/storage/object"
	localstore "caption-backend/internal/shared/storage/object/local"
	s3store "caption-backend/internal/shared/storage/object/s3"
	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/videos"
)

const ledgerMemoryCapacity = 1000

// App holds shared dependencies and the HTTP router built from them.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Previews *preview.Registry
	LLM      llm.Client
	Model    string
	Analyzer *videos.LLMAnalyzer
	Intake   *intake.Admitter
	Ledger   ledger.Store
	Notifier notify.Client
	Sessions *sessions.Manager
}

// Build prepares every dependency and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, model, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Previews: preview.NewRegistry(cfg.PublicBaseURL),
		LLM:      llmClient,
		Model:    model,
		Notifier: notifier,
	}
	app.Analyzer = &videos.LLMAnalyzer{Store: store, LLM: llmClient}
	app.Intake = &intake.Admitter{Store: store, Previews: app.Previews}

	if sqlDB != nil {
		app.Ledger = &ledger.PGStore{DB: sqlDB}
	} else {
		app.Ledger = ledger.NewMemoryStore(ledgerMemoryCapacity)
	}

	observers := []videos.Observer{&ledger.Observer{Store: app.Ledger, Model: model}}
	if notifier != nil {
		observers = append(observers, &notify.Observer{Client: notifier})
	}

	app.Sessions = sessions.NewManager(sessions.Options{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
		Factory: func(sessionID string) *videos.Engine {
			return videos.NewEngine(sessionID, videos.Config{
				Source:    app.Analyzer,
				Analyzer:  app.Analyzer,
				Releaser:  app.Intake,
				Observers: observers,
				Timeout:   cfg.AnalysisTimeout,
			})
		},
	})

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		SessionHandler: sessions.NewHandler(app.Sessions, app.Intake),
		PreviewHandler: preview.NewHandler(app.Previews, store),
		LedgerHandler:  ledger.NewHandler(app.Ledger),
		Health:         health.NewService(sqlDB, cfg.LLMProvider, app.Sessions.Len),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"provider":     cfg.LLMProvider,
		"model":        model,
		"ledger":       ledgerKind(sqlDB),
		"notify":       notifier != nil,
	})
	return app, nil
}

// Close ends every session and releases the database pool.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if a.Sessions != nil {
		if err := a.Sessions.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("close sessions: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.ledger_memory", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.ledger_memory", map[string]any{"reason": "database unavailable", "err": err})
			return nil, nil
		}
		return nil, fmt.Errorf("database: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, string, error) {
	if cfg.LLMProvider != "gemini" {
		return llm.PlaceholderClient{}, "", nil
	}
	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.GeminiTimeout,
		UseADC:  cfg.GeminiUseADC,
	})
	if err != nil {
		return nil, "", err
	}
	return client, client.Model(), nil
}

func buildNotifier(ctx context.Context, cfg config.Config) (notify.Client, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return nil, nil
	}
	return notify.NewSQSClient(ctx, cfg.NotifyQueueURL, cfg.AWSRegion)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func ledgerKind(sqlDB *sql.DB) string {
	if sqlDB == nil {
		return "memory"
	}
	return "postgres"
}
