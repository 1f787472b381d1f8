package idle

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"monad/internal/shutdown"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) waitingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), `"msg":"waiting"`)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type countingObserver struct{ n atomic.Int64 }

func (c *countingObserver) ObserveIteration() { c.n.Add(1) }

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, nil)), buf
}

func runAsync(l *Loop, wake context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Run(wake) }()
	return done
}

func TestLoopExitsWithoutWaitingWhenAlreadyStopped(t *testing.T) {
	logger, buf := newTestLogger()
	flag := shutdown.NewRunningFlag()
	flag.Stop()

	start := time.Now()
	err := New(flag, time.Hour, logger, nil).Run(context.Background())

	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.Zero(t, buf.waitingCount(), buf.String())
	require.Contains(t, buf.String(), "monad stopped")
}

func TestLoopKeepsRunningWhileFlagSet(t *testing.T) {
	logger, buf := newTestLogger()
	flag := shutdown.NewRunningFlag()
	observer := &countingObserver{}
	done := runAsync(New(flag, 5*time.Millisecond, logger, observer), context.Background())

	time.Sleep(60 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("loop exited while the flag was still set")
	default:
	}
	require.GreaterOrEqual(t, buf.waitingCount(), 2)

	flag.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not observe the cleared flag")
	}
	require.Equal(t, int64(buf.waitingCount()), observer.n.Load())
}

func TestLoopStopsWithinOneInterval(t *testing.T) {
	logger, _ := newTestLogger()
	flag := shutdown.NewRunningFlag()
	interval := 100 * time.Millisecond
	done := runAsync(New(flag, interval, logger, nil), context.Background())

	time.Sleep(20 * time.Millisecond)
	flag.Stop()
	stoppedAt := time.Now()

	select {
	case <-done:
		require.LessOrEqual(t, time.Since(stoppedAt), interval+100*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop within one interval")
	}
}

func TestLoopWakesEarlyOnStopRequest(t *testing.T) {
	logger, _ := newTestLogger()
	flag := shutdown.NewRunningFlag()
	wake, cancel := context.WithCancel(context.Background())
	done := runAsync(New(flag, time.Hour, logger, nil), wake)

	time.Sleep(20 * time.Millisecond)
	flag.Stop()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wake did not interrupt the suspend")
	}
}

func TestLoopIgnoresWakeWithoutStop(t *testing.T) {
	logger, buf := newTestLogger()
	flag := shutdown.NewRunningFlag()
	wake, cancel := context.WithCancel(context.Background())
	cancel()
	done := runAsync(New(flag, 20*time.Millisecond, logger, nil), wake)

	time.Sleep(70 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("loop exited without a stop request")
	default:
	}
	// A cancelled wake must not turn the loop into a busy spin.
	require.LessOrEqual(t, buf.waitingCount(), 5)

	flag.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestNewClampsInterval(t *testing.T) {
	l := New(nil, 0, nil, nil)
	require.Equal(t, DefaultInterval, l.interval)
	require.True(t, l.flag.Running())
}
