// Package daemonrun assembles the runtime for a single daemon process: run
// logger, retention, the shutdown handle, and the daemon itself.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"monad/internal/config"
	"monad/internal/daemon"
	"monad/internal/logging"
	"monad/internal/metrics"
	"monad/internal/preflight"
	"monad/internal/shutdown"
)

// CurrentLogName is the pointer to the newest per-run log file.
const CurrentLogName = "monad.log"

// Options configures daemon process runtime behavior.
type Options struct {
	// Mode overrides daemon.mode from the config when non-empty.
	Mode        string
	LogLevel    string
	Development bool
	// OutputPaths receive console output; defaults to stdout.
	OutputPaths []string
}

// Run starts the monad daemon and blocks until it stops. Cancelling ctx has
// the same effect as a termination signal.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	runCfg := *cfg
	if mode := strings.ToLower(strings.TrimSpace(opts.Mode)); mode != "" {
		runCfg.Daemon.Mode = mode
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}
	if err := runCfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := uuid.NewString()
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(runCfg.Paths.LogDir, fmt.Sprintf("monad-%s.log", stamp))

	level := runCfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      runCfg.Logging.Format,
		OutputPaths: opts.OutputPaths,
		RunLogPath:  logPath,
		RunID:       runID,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(runCfg.Paths.LogDir, logPath); err != nil {
		logging.WarnWithContext(logger, "unable to update log pointer", "log_pointer_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, CurrentLogName+" may point at an older run"),
		)
	}
	logging.CleanupOldLogs(logger, runCfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: runCfg.Paths.LogDir, Pattern: "monad-*.log", Exclude: []string{logPath}},
	)

	for _, failed := range preflight.Failed(preflight.RunAll(&runCfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "logs or runtime state may not persist"),
		)
	}

	reg := metrics.New()
	handle, err := shutdown.Install(cmdCtx, logger, shutdown.WithObserver(func(os.Signal) {
		reg.ObserveShutdown()
	}))
	if err != nil {
		logging.ErrorWithContext(logger, "unable to install termination handler", "shutdown_install_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the process cannot be stopped cleanly; refusing to start"),
		)
		return fmt.Errorf("install shutdown handler: %w", err)
	}
	defer handle.Release()

	d, err := daemon.New(&runCfg, logger, reg)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	logger.Info("monad daemon starting",
		logging.String("mode", runCfg.Daemon.Mode),
		logging.String("log_path", logPath),
		logging.String(logging.FieldEventType, "daemon_starting"),
	)
	return d.Run(handle)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
