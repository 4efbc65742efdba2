// Package server accepts client connections and serves the framed request
// protocol, one worker per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/metrics"
	"github.com/Domenick1991/ftms/internal/registry"
)

type Server struct {
	cfg        config.ServerConfig
	dispatcher *Dispatcher
	registry   *registry.Registry
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	closed   bool
}

func New(cfg config.ServerConfig, d *Dispatcher, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, dispatcher: d, registry: reg, logger: logger}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown is called or ctx is cancelled.
// Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	lis := s.listener
	if lis == nil {
		s.mu.Unlock()
		return errors.New("server is not listening")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	stop := context.AfterFunc(ctx, func() { _ = lis.Close() })
	defer stop()

	s.logger.Info("accepting connections", "address", lis.Addr().String())

	var backoff time.Duration
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("accept failed, retrying", "error", err, "delay", backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		s.workers.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.workers.Done()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	w := newWorker(conn, s.dispatcher, s.registry, s.logger, workerConfig{
		maxFrameBytes: s.cfg.MaxFrameBytes,
		queueSize:     s.cfg.OutboundQueue,
		writeTimeout:  time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
	})
	w.serve(ctx)
}

// Shutdown stops accepting, disconnects every client and waits for the
// workers to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	} else if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
