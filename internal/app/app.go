package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/fractal-backend/internal/data/db"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/envutil"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
	"github.com/yungbote/fractal-backend/internal/realtime"
	"github.com/yungbote/fractal-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	cancel   context.CancelFunc
}

func New() (*App, error) {
	// The logger has to exist before config loading can log, so its mode
	// comes straight from the environment.
	logMode := envutil.GetEnv("LOG_MODE", "development", nil)
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log, cfg.DatabaseURL)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := realtime.NewHub(log)

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(log, cfg, reposet, hub)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Hub:      hub,
	}, nil
}

// Start runs the realtime forwarder so messages published by other
// processes reach this hub. Safe to skip for headless tools.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.RealtimeBus != nil {
		if err := a.Services.RealtimeBus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
	}
	return nil
}

// Apply runs one event through the cascade inside a fresh transaction and,
// after commit, pushes the merged result to realtime subscribers. This is
// the write path callers embed; the engine itself never opens transactions.
func (a *App) Apply(ctx context.Context, evt events.Event) (*services.CascadeResult, error) {
	if a == nil || a.DB == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	var result *services.CascadeResult
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		result = services.CollectCascadeResults(a.Services.Bus.Emit(dbc, evt))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", evt.EventKind(), err)
	}
	if root := events.RootOf(evt); root != nil {
		a.Services.Notifier.CascadeApplied(ctx, *root, result)
	}
	return result, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.RealtimeBus != nil {
		if err := a.Services.RealtimeBus.Close(); err != nil {
			a.Log.Warn("Closing realtime bus failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
