package daemon_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"monad/internal/config"
	"monad/internal/daemon"
	"monad/internal/logging"
	"monad/internal/metrics"
	"monad/internal/shutdown"
	"monad/internal/statusapi"
	"monad/internal/testsupport"
)

func installHandle(t *testing.T) *shutdown.Handle {
	t.Helper()
	handle, err := shutdown.Install(context.Background(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(handle.Release)
	return handle
}

func startDaemon(t *testing.T, cfg *config.Config, reg *metrics.Registry) (*daemon.Daemon, *shutdown.Handle, <-chan error) {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop(), reg)
	require.NoError(t, err)
	handle := installHandle(t)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(handle) }()
	return d, handle, errCh
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := daemon.New(nil, logging.NewNop(), nil)
	require.Error(t, err)
}

func TestRunRequiresHandle(t *testing.T) {
	d, err := daemon.New(testsupport.NewConfig(t), logging.NewNop(), nil)
	require.NoError(t, err)
	require.Error(t, d.Run(nil))
}

func TestLoopModeLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMode(config.ModeLoop))
	reg := metrics.New()
	d, handle, errCh := startDaemon(t, cfg, reg)

	require.Eventually(t, func() bool { return d.Status().Running }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.PIDPath())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(cfg.PIDPath())
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	status := d.Status()
	require.Equal(t, config.ModeLoop, status.Mode)
	require.Equal(t, os.Getpid(), status.PID)
	require.Empty(t, status.StatusAddr)

	handle.Trigger(os.Interrupt)
	require.NoError(t, waitResult(t, errCh))

	require.False(t, d.Status().Running)
	_, err = os.Stat(cfg.PIDPath())
	require.True(t, os.IsNotExist(err))
}

func TestHTTPModeServesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMode(config.ModeHTTP))
	d, handle, errCh := startDaemon(t, cfg, metrics.New())

	require.Eventually(t, func() bool { return d.Status().StatusAddr != "" }, 5*time.Second, 10*time.Millisecond)
	addr := d.Status().StatusAddr

	resp, err := http.Get("http://" + addr + statusapi.StatusPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, statusapi.StatusBody, string(body))

	handle.Trigger(os.Interrupt)
	require.NoError(t, waitResult(t, errCh))

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err)
}

func TestSecondInstanceFailsFast(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	other := flock.New(cfg.LockPath())
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer other.Unlock()

	d, err := daemon.New(cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	handle := installHandle(t)

	err = d.Run(handle)
	require.ErrorIs(t, err, daemon.ErrAlreadyRunning)
	_, statErr := os.Stat(cfg.PIDPath())
	require.True(t, os.IsNotExist(statErr))
}

func TestBindConflictIsFatal(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithMode(config.ModeHTTP),
		testsupport.WithBind(occupied.Addr().String()),
	)
	d, err := daemon.New(cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	handle := installHandle(t)

	err = d.Run(handle)
	var bindErr *statusapi.BindError
	require.True(t, errors.As(err, &bindErr))
	require.False(t, d.Status().Running)
	_, statErr := os.Stat(cfg.PIDPath())
	require.True(t, os.IsNotExist(statErr))
}

func TestMetricsFailureStopsDaemon(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithMode(config.ModeLoop),
		testsupport.WithMetricsBind(occupied.Addr().String()),
	)
	_, handle, errCh := startDaemon(t, cfg, metrics.New())

	require.Error(t, waitResult(t, errCh))
	select {
	case <-handle.Done():
	default:
		t.Fatal("expected handle to fire after component failure")
	}
	require.False(t, handle.Running())
}
