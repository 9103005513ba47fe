// Package tradeoff wires the application services consumed by the commands
// and the TUI.
package tradeoff

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/config"
	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/logging"
	"github.com/hay-kot/tradeoff/internal/core/media"
	"github.com/hay-kot/tradeoff/internal/core/notify"
	"github.com/hay-kot/tradeoff/internal/core/task"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
	"github.com/hay-kot/tradeoff/internal/data/db"
	"github.com/hay-kot/tradeoff/internal/data/stores"
	"github.com/hay-kot/tradeoff/internal/scoring/gemini"
	"github.com/hay-kot/tradeoff/internal/scoring/httpclient"
)

// App is the central entry point for tradeoff operations.
// Commands and TUI consume App instead of cherry-picking raw dependencies.
type App struct {
	Config        *config.Config
	DB            *db.DB
	KV            *stores.KVStore
	Tasks         task.Store
	Identity      *IdentityService
	Bus           *eventbus.EventBus
	Notifications *notify.Center
	Gateway       analysis.Gateway
	Health        *HealthService
	Recorder      *TaskRecorder

	log zerolog.Logger
}

// Deps are the explicit dependencies of an App.
type Deps struct {
	Config  *config.Config
	DB      *db.DB
	Bus     *eventbus.EventBus
	Gateway analysis.Gateway
	// Checker checks the gateway's backend; nil when it has no health endpoint.
	Checker HealthChecker
	Logger  zerolog.Logger
}

// NewApp constructs an App and subscribes its recorder to the bus.
func NewApp(d Deps) *App {
	kvStore := stores.NewKVStore(d.DB)
	tasks := stores.NewTaskStore(d.DB)

	app := &App{
		Config:        d.Config,
		DB:            d.DB,
		KV:            kvStore,
		Tasks:         tasks,
		Identity:      NewIdentityService(stores.NewUserStore(d.DB), kvStore, d.Bus, logging.With(d.Logger, logging.CmpIdentity)),
		Bus:           d.Bus,
		Notifications: notify.NewCenter(d.Config.Notifications.Dwell),
		Gateway:       d.Gateway,
		Health:        NewHealthService(d.Checker, kvStore),
		Recorder:      NewTaskRecorder(tasks, d.Bus, logging.With(d.Logger, logging.CmpRecorder)),
		log:           d.Logger,
	}

	eventbus.BridgeNotifications(app.Notifications, d.Bus)
	app.Recorder.Subscribe()
	return app
}

// NewSession creates a workflow session attributed to the signed-in user,
// if any.
func (a *App) NewSession(ctx context.Context) (*workflow.Session, error) {
	s := workflow.New(workflow.Config{
		Gateway:  a.Gateway,
		Notifier: a.Notifications,
		Limits:   media.Limits{MaxBytes: a.Config.Media.MaxBytes},
		Examples: a.Config.Examples,
		Observer: NewBusObserver(a.Bus),
		Logger:   logging.With(a.log, logging.CmpWorkflow),
	})

	user, err := a.Identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.SetUser(user.ID)
	}
	return s, nil
}

// Close stops the notification center.
func (a *App) Close() {
	a.Notifications.Close()
}

// NewGateway builds the analysis gateway selected by cfg.Scoring.Backend.
// The returned checker is nil for backends without a health endpoint.
func NewGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (analysis.Gateway, HealthChecker, error) {
	switch cfg.Scoring.Backend {
	case config.BackendHTTP:
		client := httpclient.New(httpclient.Options{
			BaseURL:     cfg.Scoring.BaseURL,
			AnalyzePath: cfg.Scoring.AnalyzePath,
			VerifyPath:  cfg.Scoring.VerifyPath,
			Timeout:     cfg.Scoring.Timeout,
			Logger:      logging.With(logger, logging.CmpScoring),
		})
		return client, client, nil
	case config.BackendGemini:
		scorer, err := NewScorer(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return scorer, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown scoring backend %q", cfg.Scoring.Backend)
	}
}

// NewScorer builds the Gemini scorer used by the gemini backend and by
// `tradeoff serve`.
func NewScorer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gemini.Scorer, error) {
	key := cfg.Gemini.APIKey()
	if key == "" {
		return nil, fmt.Errorf("gemini api key not set: export %s", cfg.Gemini.APIKeyEnv)
	}
	return gemini.New(ctx, key, cfg.Gemini.Model, logging.With(logger, logging.CmpGemini))
}

// unavailableGateway fails every request with the reason the configured
// backend could not be built, so commands that never analyze still run.
type unavailableGateway struct {
	err error
}

// Unavailable returns a gateway whose calls fail with err.
func Unavailable(err error) analysis.Gateway {
	return unavailableGateway{err: err}
}

func (g unavailableGateway) AnalyzeText(context.Context, string) (analysis.Result, error) {
	return analysis.Result{}, analysis.ServerErrorf("scoring backend unavailable: %v", g.err)
}

func (g unavailableGateway) VerifyImage(context.Context, string, string) (analysis.Verification, error) {
	return analysis.Verification{}, analysis.ServerErrorf("scoring backend unavailable: %v", g.err)
}
