package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/commands"
	"github.com/hay-kot/tradeoff/internal/core/config"
	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/logging"
	"github.com/hay-kot/tradeoff/internal/data/db"
	"github.com/hay-kot/tradeoff/internal/data/stores"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

const (
	busBuffer     = 256
	sweepInterval = 5 * time.Minute
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

// openDatabase opens the database, moving a corrupted file aside and
// starting fresh once.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil || !stores.IsCorruptionError(err) {
		return database, err
	}

	backup, rerr := stores.RecoverFromCorruption(cfg.DataDir)
	if rerr != nil {
		return nil, fmt.Errorf("recover corrupted database: %w", rerr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("database corrupted, moved it aside and started fresh")
	return db.Open(cfg.DataDir, opts)
}

func main() {
	ctx := context.Background()

	var (
		logCloser   func()
		tradeoffApp = &tradeoff.App{}
		database    *db.DB
		busCancel   context.CancelFunc
		busDone     chan struct{}
		sweepCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "tradeoff",
		Usage:     "Weigh everyday decisions against their financial, time and health impact",
		UsageText: "tradeoff [global options] command [command options]",
		Description: `Tradeoff sends a decision you're weighing to a scoring service and shows
the analysis with its impact metrics. Ongoing activities can be verified with
a photo.

Run 'tradeoff' with no arguments to open the interactive screen.
Run 'tradeoff analyze "..."' to analyze a decision from the shell.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TRADEOFF_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file, or '-' for stderr outside the TUI (defaults to <data-dir>/tradeoff.log)",
				Sources:     cli.EnvVars("TRADEOFF_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TRADEOFF_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TRADEOFF_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Pick up GEMINI_API_KEY and friends from a local .env file
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return ctx, fmt.Errorf("load .env: %w", err)
			}

			// Log to a file unless asked for stderr; the TUI owns the terminal,
			// so it always gets the file.
			logFile := flags.LogFile
			if logFile == "" || (logFile == logutils.Stderr && c.Args().Len() == 0) {
				logFile = filepath.Join(flags.DataDir, "tradeoff.log")
			}

			logger, closer, err := logutils.New(logutils.Options{
				Level:   flags.LogLevel,
				File:    logFile,
				Version: version,
			})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			database, err = openDatabase(cfg)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			// Start the event bus; After drains whatever is still queued
			bus := eventbus.New(busBuffer)
			eventbus.RegisterDebugLogger(bus, logging.Component(logging.CmpEventBus))
			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			busDone = make(chan struct{})
			go func() {
				bus.Start(busCtx)
				close(busDone)
			}()

			gateway, checker, err := tradeoff.NewGateway(ctx, cfg, log.Logger)
			if err != nil {
				log.Warn().Err(err).Str("backend", cfg.Scoring.Backend).Msg("scoring backend unavailable")
				gateway = tradeoff.Unavailable(err)
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*tradeoffApp = *tradeoff.NewApp(tradeoff.Deps{
				Config:  cfg,
				DB:      database,
				Bus:     bus,
				Gateway: gateway,
				Checker: checker,
				Logger:  log.Logger,
			})

			// Start background KV sweep goroutine
			sweepCtx, cancelSweep := context.WithCancel(context.Background())
			sweepCancel = cancelSweep
			go tradeoff.StartSweep(sweepCtx, tradeoffApp.KV, sweepInterval)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Stop background sweep
			if sweepCancel != nil {
				sweepCancel()
			}

			// Deliver queued events (task recording) before the database closes
			if busCancel != nil {
				busCancel()
				<-busDone
				tradeoffApp.Bus.Drain()

				stats := tradeoffApp.Bus.Stats()
				ev := log.Debug()
				if stats.Dropped > 0 {
					ev = log.Warn()
				}
				ev.Uint64("published", stats.Published).
					Uint64("dropped", stats.Dropped).
					Uint64("panics", stats.Panics).
					Msg("event bus stopped")
			}

			if tradeoffApp.Notifications != nil {
				tradeoffApp.Close()
			}

			// Close database connection
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	tuiCmd := commands.NewTuiCmd(flags, tradeoffApp)

	app = commands.NewAnalyzeCmd(flags, tradeoffApp).Register(app)
	app = commands.NewTasksCmd(flags, tradeoffApp).Register(app)
	app = commands.NewLeaderboardCmd(flags, tradeoffApp).Register(app)
	app = commands.NewAuthCmd(flags, tradeoffApp).Register(app)
	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewDBCmd(flags, tradeoffApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	// Register TUI flags on root command
	app.Flags = append(app.Flags, tuiCmd.Flags()...)

	// Set TUI as default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'tradeoff --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
