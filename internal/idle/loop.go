// Package idle implements the loop run mode: a polling loop that emits an
// idle notice each interval until the shared RunningFlag is cleared.
package idle

import (
	"context"
	"log/slog"
	"time"

	"monad/internal/logging"
	"monad/internal/shutdown"
)

// DefaultInterval is the suspend time between iterations.
const DefaultInterval = 5 * time.Second

// IterationObserver is notified once per completed iteration.
type IterationObserver interface {
	ObserveIteration()
}

// Loop is the idle loop executor. It has two states, running and stopped, and
// only leaves the running state when the flag reads false at the top of an
// iteration.
type Loop struct {
	flag     *shutdown.RunningFlag
	interval time.Duration
	logger   *slog.Logger
	observer IterationObserver
}

// New builds a loop bound to flag. A non-positive interval falls back to
// DefaultInterval so the loop can never spin.
func New(flag *shutdown.RunningFlag, interval time.Duration, logger *slog.Logger, observer IterationObserver) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if flag == nil {
		flag = shutdown.NewRunningFlag()
	}
	return &Loop{
		flag:     flag,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "idle-loop"),
		observer: observer,
	}
}

// Run loops until the flag is cleared. wake may end a suspend early; the flag
// is still re-checked, so a wake-up without a stop request only resumes
// waiting for the rest of the interval.
func (l *Loop) Run(wake context.Context) error {
	if wake == nil {
		wake = context.Background()
	}
	l.logger.Info("monad started; listening for local events",
		logging.Duration("poll_interval", l.interval),
		logging.String(logging.FieldEventType, "loop_started"),
	)

	iterations := 0
	for l.flag.Running() {
		l.logger.Info("waiting")
		l.sleep(wake)
		iterations++
		if l.observer != nil {
			l.observer.ObserveIteration()
		}
	}

	l.logger.Info("monad stopped",
		logging.Int("iterations", iterations),
		logging.String(logging.FieldEventType, "loop_stopped"),
	)
	return nil
}

func (l *Loop) sleep(wake context.Context) {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-wake.Done():
		if l.flag.Running() {
			<-timer.C
		}
	}
}
