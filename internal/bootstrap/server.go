package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/ftms/api"
	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/server"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC service name reported alongside the overall status.
const HealthService = "ftms.TicketServer"

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Dispatcher *server.Dispatcher
	Registry   *registry.Registry
	Opener     repository.Opener
	Flights    flights.FlightUseCase
	Booking    booking.BookingUseCase
	Logger     *slog.Logger
}

// Servers groups the client TCP endpoint, the admin HTTP API and the gRPC
// health endpoint. All listeners are bound by NewServers.
type Servers struct {
	tcp        *server.Server
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	grpcLis    net.Listener
	httpLis    net.Listener
	registry   *registry.Registry
	logger     *slog.Logger
}

// Run starts every server and blocks until ctx is cancelled or one fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	s, err := NewServers(cfg, deps)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func NewServers(cfg *config.Config, deps Deps) (*Servers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tcp := server.New(cfg.Server, deps.Dispatcher, deps.Registry, logger)
	if err := tcp.Listen(); err != nil {
		return nil, err
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		_ = tcp.Shutdown(context.Background())
		return nil, fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		_ = grpcLis.Close()
		_ = tcp.Shutdown(context.Background())
		return nil, fmt.Errorf("listen HTTP %s: %w", cfg.HTTP.Address, err)
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	router := api.NewRouter(api.RouterConfig{
		Opener:     deps.Opener,
		Flights:    deps.Flights,
		Booking:    deps.Booking,
		Registry:   deps.Registry,
		SwaggerDir: cfg.HTTP.SwaggerDir,
		Logger:     logger,
	})

	return &Servers{
		tcp:        tcp,
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		grpcLis:    grpcLis,
		httpLis:    httpLis,
		registry:   deps.Registry,
		logger:     logger,
	}, nil
}

func (s *Servers) TCPAddr() net.Addr  { return s.tcp.Addr() }
func (s *Servers) GRPCAddr() net.Addr { return s.grpcLis.Addr() }
func (s *Servers) HTTPAddr() net.Addr { return s.httpLis.Addr() }

func (s *Servers) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() { errCh <- s.grpcServer.Serve(s.grpcLis) }()

	go func() {
		if err := s.httpServer.Serve(s.httpLis); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		if err := s.tcp.Serve(ctx); err != nil {
			errCh <- err
		}
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("servers started",
		"tcp", s.TCPAddr().String(),
		"http", s.HTTPAddr().String(),
		"grpc", s.GRPCAddr().String(),
	)

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
	}

	return errors.Join(runErr, s.shutdown())
}

func (s *Servers) shutdown() error {
	s.health.Shutdown()
	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.tcp.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tcp server: %w", err))
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	s.grpcServer.GracefulStop()
	if s.registry != nil {
		s.registry.CloseAll()
	}
	return errors.Join(errs...)
}

// Health exposes the health server for health checks embedded in the process.
func (s *Servers) Health() healthpb.HealthServer {
	return s.health
}
