package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vgsales/bundle"
	"vgsales/corpus"
	"vgsales/encoder"
	"vgsales/metrics"
)

// State is the lifecycle of a Holder.
type State int32

const (
	Uninitialized State = iota
	Loaded
	Unavailable
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Holder owns the Context currently used for predictions and swaps it
// wholesale when a new bundle is published. Contexts are never mutated.
type Holder struct {
	dir     string
	logger  *zap.Logger
	metrics *metrics.Manager

	mu      sync.Mutex
	current atomic.Pointer[Context]
	state   atomic.Int32
}

func NewHolder(dir string, logger *zap.Logger, m *metrics.Manager) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{dir: dir, logger: logger, metrics: m}
}

func (h *Holder) State() State { return State(h.state.Load()) }

// Load reads the current bundle from disk. A missing bundle moves an
// uninitialized holder to Unavailable; a holder that already serves a bundle
// keeps it. Loading the version already held is a no-op.
func (h *Holder) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur := h.current.Load(); cur != nil {
		if dir, err := bundle.Resolve(h.dir); err == nil && filepath.Base(dir) == cur.Version() {
			return nil
		}
	}
	ctx, err := Open(h.dir)
	if err != nil {
		if h.State() != Loaded {
			h.state.Store(int32(Unavailable))
		}
		h.logger.Warn("bundle not loaded", zap.String("dir", h.dir), zap.Error(err))
		return err
	}
	h.swap(ctx)
	return nil
}

// Replace installs an already loaded bundle, e.g. one just published by a
// training run in this process.
func (h *Holder) Replace(b *bundle.Bundle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.swap(NewContext(b))
}

func (h *Holder) swap(ctx *Context) {
	prev := h.current.Swap(ctx)
	h.state.Store(int32(Loaded))
	if prev != nil {
		h.metrics.ObserveReload()
	}
	h.logger.Info("bundle loaded", zap.String("version", ctx.Version()))
}

// Context returns the active context or ErrModelsUnavailable.
func (h *Holder) Context() (*Context, error) {
	ctx := h.current.Load()
	if ctx == nil {
		return nil, ErrModelsUnavailable
	}
	return ctx, nil
}

// Predict runs rec through the active context. Failures never change state.
func (h *Holder) Predict(rec corpus.Record) (*Prediction, error) {
	ctx, err := h.Context()
	if err != nil {
		h.metrics.ObservePrediction(metrics.OutcomeUnavailable)
		return nil, err
	}
	p, err := ctx.Predict(rec)
	if err != nil {
		var unknown *encoder.UnknownCategoryError
		switch {
		case errors.As(err, &unknown):
			h.metrics.ObserveUnknownCategory(unknown.Feature)
		case errors.Is(err, corpus.ErrMalformedRecord):
			h.metrics.ObservePrediction(metrics.OutcomeMalformed)
		}
		return nil, err
	}
	h.metrics.ObservePrediction(metrics.OutcomeOK)
	return p, nil
}

// Watch reloads whenever a new bundle is published under the holder's
// directory. It blocks until ctx is done.
func (h *Holder) Watch(ctx context.Context, debounce time.Duration) error {
	w := bundle.NewWatcher(h.dir, debounce, h.logger.Named("watcher"))
	return w.Run(ctx, func(version string) {
		if err := h.Load(); err != nil {
			h.logger.Error("reload bundle", zap.String("version", version), zap.Error(err))
		}
	})
}
