package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"monad/internal/logging"
)

// ErrAlreadyInstalled is returned when Install is called while another handle
// is still live.
var ErrAlreadyInstalled = errors.New("shutdown handler already installed")

var installed atomic.Bool

// Option customizes Install.
type Option func(*options)

type options struct {
	signals  []os.Signal
	onSignal func(os.Signal)
}

// WithSignals replaces the watched signal set.
func WithSignals(sigs ...os.Signal) Option {
	return func(o *options) {
		o.signals = append([]os.Signal(nil), sigs...)
	}
}

// WithObserver registers a callback run once when the stop request fires,
// after the flag is cleared. sig is nil for programmatic stops.
func WithObserver(fn func(sig os.Signal)) Option {
	return func(o *options) {
		o.onSignal = fn
	}
}

// Handle is the installed coordinator.
type Handle struct {
	logger   *slog.Logger
	flag     *RunningFlag
	onSignal func(os.Signal)

	sigCh  chan os.Signal
	done   chan struct{}
	quit   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	fireOnce    sync.Once
	releaseOnce sync.Once
	mu          sync.Mutex
	fired       os.Signal
}

// Install registers the termination signal handler. It fails with
// ErrAlreadyInstalled if a previous handle has not been released. When parent
// is cancelled the handle fires as if a signal had arrived.
func Install(parent context.Context, logger *slog.Logger, opts ...Option) (*Handle, error) {
	cfg := options{signals: defaultSignals}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.signals) == 0 {
		return nil, errors.New("install shutdown handler: no signals to watch")
	}
	if parent == nil {
		parent = context.Background()
	}
	if !installed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInstalled
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	h := &Handle{
		logger:   logging.NewComponentLogger(logger, "shutdown"),
		flag:     NewRunningFlag(),
		onSignal: cfg.onSignal,
		sigCh:    make(chan os.Signal, 1),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	signal.Notify(h.sigCh, cfg.signals...)
	go h.watch(parent)
	return h, nil
}

func (h *Handle) watch(parent context.Context) {
	for {
		select {
		case sig := <-h.sigCh:
			if !h.Trigger(sig) {
				h.logger.Debug("additional termination signal ignored", logging.String("signal", sig.String()))
			}
		case <-parent.Done():
			h.Trigger(nil)
			parent = context.Background()
		case <-h.quit:
			return
		}
	}
}

// Trigger resolves the handle as if sig had been received. It reports whether
// this call performed the stop; only the first call has any effect.
func (h *Handle) Trigger(sig os.Signal) bool {
	fired := false
	h.fireOnce.Do(func() {
		fired = true
		h.mu.Lock()
		h.fired = sig
		h.mu.Unlock()

		name := "none"
		if sig != nil {
			name = sig.String()
		}
		h.logger.Info("received termination signal; shutting down",
			logging.String("signal", name),
			logging.String(logging.FieldEventType, "shutdown_requested"),
		)
		h.flag.Stop()
		if h.onSignal != nil {
			h.onSignal(sig)
		}
		close(h.done)
		h.cancel()
	})
	return fired
}

// Running reports whether the stop request has not fired yet.
func (h *Handle) Running() bool {
	return h.flag.Running()
}

// Flag returns the shared RunningFlag.
func (h *Handle) Flag() *RunningFlag {
	return h.flag
}

// Done is closed once the stop request fires.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Context is cancelled once the stop request fires.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Signal returns the signal that fired the handle, or nil.
func (h *Handle) Signal() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}

// Release stops signal delivery and allows a later Install. It does not fire
// the handle.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		signal.Stop(h.sigCh)
		close(h.quit)
		installed.Store(false)
	})
}
