// Package daemonctl controls a detached monad daemon from the CLI: launch,
// pid-file liveness, signal-based stop, and status probing.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"monad/internal/config"
	"monad/internal/statusapi"
)

// ErrDaemonNotRunning indicates no live daemon owns the pid file.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// Launch starts a detached monad daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// ReadPID returns the pid recorded in pidPath, or 0 when the file is absent.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("parse daemon pid file %q: invalid pid %q", pidPath, text)
	}
	return pid, nil
}

// ProcessAlive reports whether pid names a live process we may signal.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// LivePID returns the recorded pid when that process is still alive.
func LivePID(pidPath string) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil || pid == 0 {
		return 0, err
	}
	if !ProcessAlive(pid) {
		return 0, nil
	}
	return pid, nil
}

// WaitForStart polls until a live pid appears or timeout elapses.
func WaitForStart(pidPath string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		pid, err := LivePID(pidPath)
		if err == nil && pid > 0 {
			return pid, nil
		}
		if time.Now().After(deadline) {
			if err == nil {
				err = errors.New("timeout waiting for pid file")
			}
			return 0, fmt.Errorf("daemon failed to start: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID    int
	Exited bool
}

// Stop sends SIGINT to the daemon and waits up to timeout for it to exit.
func Stop(pidPath string, timeout time.Duration) (StopResult, error) {
	pid, err := LivePID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGINT); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return StopResult{PID: pid, Exited: true}, nil
		}
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			result.Exited = true
			return result, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return result, fmt.Errorf("daemon process %d did not exit within %s", pid, timeout)
}

// Probe is the outcome of a status request.
type Probe struct {
	Reachable bool
	Code      int
	Body      string
	Err       error
}

// ProbeStatus requests /status from the service at bind.
func ProbeStatus(ctx context.Context, bind string) Probe {
	if strings.TrimSpace(bind) == "" {
		bind = statusapi.DefaultBind
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+bind+statusapi.StatusPath, nil)
	if err != nil {
		return Probe{Err: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Probe{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return Probe{Reachable: true, Code: resp.StatusCode, Body: string(body), Err: err}
}

// Snapshot is the CLI view of daemon state.
type Snapshot struct {
	Running     bool
	PID         int
	Mode        string
	PIDFile     string
	LockFile    string
	StatusBind  string
	MetricsBind string
	Status      *Probe
}

// BuildStatusSnapshot collects pid-file state and, in http mode, probes the
// status service.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{
		Mode:        cfg.Daemon.Mode,
		PIDFile:     cfg.PIDPath(),
		LockFile:    cfg.LockPath(),
		StatusBind:  cfg.Server.Bind,
		MetricsBind: cfg.Metrics.Bind,
	}
	pid, err := LivePID(snap.PIDFile)
	if err != nil {
		return nil, err
	}
	snap.PID = pid
	snap.Running = pid > 0
	if snap.Running && cfg.Daemon.Mode == config.ModeHTTP {
		probe := ProbeStatus(ctx, cfg.Server.Bind)
		snap.Status = &probe
	}
	return snap, nil
}
