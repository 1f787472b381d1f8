package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"monad/internal/config"
	"monad/internal/idle"
	"monad/internal/logging"
	"monad/internal/metrics"
	"monad/internal/shutdown"
	"monad/internal/statusapi"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another monad daemon instance is already running")

// Daemon runs one mode under the single-instance lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Registry

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool

	mu         sync.Mutex
	startedAt  time.Time
	statusAddr string
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Mode         string
	PID          int
	StartedAt    time.Time
	StatusAddr   string
	MetricsAddr  string
	LockFilePath string
	PIDFilePath  string
}

// New constructs a daemon. reg may be nil when metrics are not collected.
func New(cfg *config.Config, logger *slog.Logger, reg *metrics.Registry) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		metrics:  reg,
		lockPath: lockPath,
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock and runs the configured mode until handle
// fires. It returns nil on a clean stop. If any component fails, the handle
// is triggered so the rest of the process winds down with it.
func (d *Daemon) Run(handle *shutdown.Handle) error {
	if handle == nil {
		return errors.New("daemon requires an installed shutdown handle")
	}
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		logging.ErrorWithContext(d.logger, "daemon lock held", "daemon_lock_conflict",
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "stop the running instance with `monad stop`"),
		)
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := writePIDFile(d.pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(d.pidPath)

	d.mu.Lock()
	d.startedAt = time.Now()
	d.statusAddr = ""
	d.mu.Unlock()

	runners, err := d.runners(handle)
	if err != nil {
		return err
	}

	d.metrics.SetRunning(true)
	defer d.metrics.SetRunning(false)
	d.logger.Info("monad daemon started",
		logging.String("mode", d.cfg.Daemon.Mode),
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)

	group, groupCtx := errgroup.WithContext(handle.Context())
	for _, run := range runners {
		group.Go(func() error {
			err := run(groupCtx)
			if err != nil {
				handle.Trigger(nil)
			}
			return err
		})
	}
	err = group.Wait()

	d.logger.Info("monad daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// runners binds eagerly so a port conflict fails startup instead of
// surfacing after the daemon reports itself started.
func (d *Daemon) runners(handle *shutdown.Handle) ([]func(context.Context) error, error) {
	var runners []func(context.Context) error

	switch d.cfg.Daemon.Mode {
	case config.ModeLoop, "":
		loop := idle.New(handle.Flag(), d.cfg.PollInterval(), d.logger, d.metrics)
		runners = append(runners, loop.Run)
	case config.ModeHTTP:
		srv := statusapi.New(d.cfg.Server.Bind, d.logger, statusapi.Options{
			ShutdownTimeout: d.cfg.ShutdownTimeout(),
			Observer:        d.metrics,
		})
		if err := srv.Listen(); err != nil {
			logging.ErrorWithContext(d.logger, "status api bind failed", "status_api_bind_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "another process may already own this port; change server.bind"),
			)
			return nil, err
		}
		d.mu.Lock()
		d.statusAddr = srv.Addr().String()
		d.mu.Unlock()
		runners = append(runners, srv.Serve)
	default:
		return nil, fmt.Errorf("daemon: unsupported mode %q", d.cfg.Daemon.Mode)
	}

	if bind := d.cfg.Metrics.Bind; bind != "" {
		runners = append(runners, func(ctx context.Context) error {
			return metrics.Serve(ctx, bind, d.metrics, d.logger)
		})
	}
	return runners, nil
}

// Status returns the current runtime snapshot.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	running := d.running.Load()
	status := Status{
		Running:      running,
		Mode:         d.cfg.Daemon.Mode,
		MetricsAddr:  d.cfg.Metrics.Bind,
		LockFilePath: d.lockPath,
		PIDFilePath:  d.pidPath,
	}
	if running {
		status.PID = os.Getpid()
		status.StartedAt = d.startedAt
		status.StatusAddr = d.statusAddr
	}
	return status
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
