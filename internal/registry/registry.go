// Package registry keeps one store handle per connection worker. A handle
// is opened on the worker's first store access and closed when the worker
// goes away; handles are never shared between workers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Domenick1991/ftms/internal/metrics"
	"github.com/Domenick1991/ftms/internal/repository"
)

var (
	ErrClosed   = errors.New("registry closed")
	ErrReleased = errors.New("worker released while its handle was opening")
)

type Stats struct {
	Open   int   `json:"open"`
	Opened int64 `json:"opened_total"`
}

// opening tracks one in-flight Open so concurrent Get calls for the same
// worker share it.
type opening struct {
	done chan struct{}
	h    repository.Handle
	err  error
}

type Registry struct {
	opener      repository.Opener
	logger      *slog.Logger
	openTimeout time.Duration

	mu      sync.Mutex
	handles map[string]repository.Handle
	pending map[string]*opening
	opened  int64
	closed  bool
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithOpenTimeout bounds the wait for a handle. Zero waits as long as the
// caller's context allows.
func WithOpenTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.openTimeout = d
	}
}

func New(opener repository.Opener, opts ...Option) *Registry {
	r := &Registry{
		opener:  opener,
		logger:  slog.Default(),
		handles: make(map[string]repository.Handle),
		pending: make(map[string]*opening),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the worker's handle, opening it on first use. The open runs
// without the registry lock held, so a worker waiting for a pooled
// connection never blocks other workers or Release.
func (r *Registry) Get(ctx context.Context, workerID string) (repository.Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if h, ok := r.handles[workerID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	if op, ok := r.pending[workerID]; ok {
		r.mu.Unlock()
		select {
		case <-op.done:
			return op.h, op.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	op := &opening{done: make(chan struct{})}
	r.pending[workerID] = op
	r.mu.Unlock()

	h, err := r.open(ctx)

	r.mu.Lock()
	current := r.pending[workerID] == op
	if current {
		delete(r.pending, workerID)
	}
	var stale repository.Handle
	switch {
	case err != nil:
		err = fmt.Errorf("open store handle for worker %s: %w", workerID, err)
	case !current || r.closed:
		stale, h = h, nil
		err = ErrReleased
		if r.closed {
			err = ErrClosed
		}
	default:
		r.handles[workerID] = h
		r.opened++
		metrics.OpenHandles.Set(float64(len(r.handles)))
		r.logger.Debug("store handle opened", "worker_id", workerID, "open", len(r.handles))
	}
	r.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	op.h, op.err = h, err
	close(op.done)
	return h, err
}

func (r *Registry) open(ctx context.Context) (repository.Handle, error) {
	if r.openTimeout <= 0 {
		return r.opener.Open(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.openTimeout)
	defer cancel()
	return r.opener.Open(ctx)
}

// Release closes the worker's handle if it has one. A handle still being
// opened for the worker is closed as soon as the open returns.
func (r *Registry) Release(workerID string) {
	r.mu.Lock()
	h, ok := r.handles[workerID]
	delete(r.handles, workerID)
	delete(r.pending, workerID)
	metrics.OpenHandles.Set(float64(len(r.handles)))
	r.mu.Unlock()

	if ok {
		h.Close()
		r.logger.Debug("store handle released", "worker_id", workerID)
	}
}

// CloseAll closes every handle. Later Get calls fail with ErrClosed.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]repository.Handle)
	r.pending = make(map[string]*opening)
	r.closed = true
	metrics.OpenHandles.Set(0)
	r.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
	if len(handles) > 0 {
		r.logger.Info("store handles closed", "count", len(handles))
	}
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Open: len(r.handles), Opened: r.opened}
}
