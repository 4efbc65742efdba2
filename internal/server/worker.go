package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/ftms/internal/protocol"
	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/google/uuid"
)

const readChunkSize = 4096

// worker serves one client connection. Requests are handled in arrival
// order on the read loop; every write goes through the outbound queue.
type worker struct {
	id           string
	conn         net.Conn
	dispatcher   *Dispatcher
	registry     *registry.Registry
	logger       *slog.Logger
	frames       *protocol.FrameBuffer
	outbound     chan []byte
	writeTimeout time.Duration

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	chatBusy atomic.Bool
}

type workerConfig struct {
	maxFrameBytes int
	queueSize     int
	writeTimeout  time.Duration
}

func newWorker(conn net.Conn, d *Dispatcher, reg *registry.Registry, logger *slog.Logger, cfg workerConfig) *worker {
	id := uuid.NewString()
	if cfg.queueSize <= 0 {
		cfg.queueSize = 16
	}
	return &worker{
		id:           id,
		conn:         conn,
		dispatcher:   d,
		registry:     reg,
		logger:       logger.With("worker_id", id, "remote_addr", conn.RemoteAddr().String()),
		frames:       protocol.NewFrameBuffer(cfg.maxFrameBytes),
		outbound:     make(chan []byte, cfg.queueSize),
		writeTimeout: cfg.writeTimeout,
	}
}

func (w *worker) WorkerID() string {
	return w.id
}

func (w *worker) Handle(ctx context.Context) (repository.Handle, error) {
	return w.registry.Get(ctx, w.id)
}

func (w *worker) Go(kind protocol.RequestKind, fn func(ctx context.Context) protocol.Response) bool {
	if !w.chatBusy.CompareAndSwap(false, true) {
		return false
	}
	w.bgWG.Add(1)
	go func() {
		defer w.bgWG.Done()
		defer w.chatBusy.Store(false)

		resp := fn(w.bgCtx)
		if w.bgCtx.Err() != nil {
			w.logger.Debug("discarding response for closed connection", "kind", kind.String())
			return
		}
		observe(kind, resp.Status)
		w.send(resp)
	}()
	return true
}

func (w *worker) send(resp protocol.Response) {
	w.outbound <- protocol.EncodeFrame(protocol.EncodeResponse(resp))
}

// serve runs until the peer disconnects, a protocol error occurs or ctx
// is cancelled. It releases everything the worker holds before returning.
func (w *worker) serve(ctx context.Context) {
	w.bgCtx, w.bgCancel = context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { _ = w.conn.Close() })
	defer stop()

	writerDone := make(chan struct{})
	go w.writeLoop(writerDone)

	w.logger.Info("client connected")
	err := w.readLoop(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		w.logger.Info("client disconnected")
	default:
		w.logger.Warn("connection closed", "error", err)
	}

	w.bgCancel()
	w.bgWG.Wait()
	close(w.outbound)
	<-writerDone
	_ = w.conn.Close()
	w.registry.Release(w.id)
}

func (w *worker) readLoop(ctx context.Context) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := w.conn.Read(buf)
		if n > 0 {
			w.frames.Feed(buf[:n])
			if ferr := w.drain(ctx); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// drain handles every complete frame currently buffered.
func (w *worker) drain(ctx context.Context) error {
	for {
		payload, ok, err := w.frames.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			w.logger.Warn("malformed request", "error", err)
			observe(0, protocol.StatusFailed)
			w.send(protocol.Response{Status: protocol.StatusFailed})
			continue
		}

		start := time.Now()
		resp, ok := w.dispatcher.Dispatch(ctx, w, req)
		if ok {
			w.send(resp)
		}
		w.logger.Debug("request handled", "kind", req.Kind.String(), "status", resp.Status.String(), "deferred", !ok, "duration", time.Since(start))
	}
}

// writeLoop is the only writer on the socket. After a write error it keeps
// draining the queue so senders never block on a dead connection.
func (w *worker) writeLoop(done chan<- struct{}) {
	defer close(done)
	var broken bool
	for frame := range w.outbound {
		if broken {
			continue
		}
		if w.writeTimeout > 0 {
			_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
		}
		if _, err := w.conn.Write(frame); err != nil {
			w.logger.Warn("write failed", "error", err)
			broken = true
			_ = w.conn.Close()
		}
	}
}
