package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/lifecycle"
	"github.com/hpungsan/wishaday/internal/logging"
	"github.com/hpungsan/wishaday/internal/mcp"
	"github.com/hpungsan/wishaday/internal/media"
	"github.com/hpungsan/wishaday/internal/metrics"
	"github.com/hpungsan/wishaday/internal/reclaim"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// shutdownTimeout bounds how long server mode waits for an in-flight sweep.
const shutdownTimeout = 30 * time.Second

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"create": true, "view": true, "delete": true, "status": true,
	"attach": true, "images": true, "detach": true, "sweep": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
            _     _                  _
  __      _(_)___| |__   __ _  __| | __ _ _   _
  \ \ /\ / / / __| '_ \ / _' |/ _' |/ _' | | | |
   \ V  V /| \__ \ | | | (_| | (_| | (_| | |_| |
    \_/\_/ |_|___/_| |_|\__,_|\__,_|\__,_|\__, |
                                          |___/

  Self-destructing wishes

  Usage: wishaday <command> [options]
         wishaday --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".wishaday")

	cfg, err := config.LoadWithEnv(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout carries CLI JSON or the MCP stream.
	logger := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if generated, err := config.EnsureFingerprintSecret(baseDir, cfg); err != nil {
		logger.Warn("no fingerprint_secret configured and one could not be saved; origin fingerprints are unkeyed", "error", err)
	} else if generated {
		logger.Info("generated fingerprint_secret", "path", filepath.Join(baseDir, "config.json"))
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled_tools", "names", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	met := metrics.New()
	store := media.NewStore(cfg.ResolveUploadDir(baseDir), cfg.MaxImageBytes,
		media.WithMinFreeBytes(int64(cfg.MinFreeDiskBytes)),
	)
	manager := lifecycle.NewManager(database, cfg, store,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(met),
	)
	scheduler := reclaim.NewScheduler(database, cfg, store,
		reclaim.WithLogger(logger),
		reclaim.WithMetrics(met),
	)

	if isCLIMode() {
		app := newCLIApp(manager, scheduler)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'wishaday --help' for usage.\n")
		os.Exit(1)
	}

	if err := serve(manager, scheduler, met, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serve runs the MCP server over stdio with the reclamation scheduler and,
// when configured, the metrics listener alongside it.
func serve(manager *lifecycle.Manager, scheduler *reclaim.Scheduler, met *metrics.Metrics, cfg *config.Config, logger *slog.Logger) error {
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start reclamation: %w", err)
	}

	runErr := mcp.Run(manager, cfg, Version)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		logger.Warn("reclamation did not stop cleanly", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics listener did not stop cleanly", "error", err)
		}
	}

	return runErr
}
