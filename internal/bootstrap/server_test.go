package bootstrap

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository/memory"
	"github.com/Domenick1991/ftms/internal/server"
	"github.com/Domenick1991/ftms/internal/service/account"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestServers(t *testing.T) *Servers {
	t.Helper()
	store := memory.New()
	reg := registry.New(store, registry.WithLogger(logger.Discard()))
	flightSvc := flights.NewFlightService(nil, logger.Discard())
	bookingSvc := booking.NewBookingService(booking.WithLogger(logger.Discard()))

	cfg := &config.Config{
		Server: config.ServerConfig{Address: "127.0.0.1:0"},
		HTTP:   config.HTTPConfig{Address: "127.0.0.1:0"},
		GRPC:   config.GRPCConfig{Address: "127.0.0.1:0"},
	}
	s, err := NewServers(cfg, Deps{
		Dispatcher: server.NewDispatcher(server.Services{
			Accounts: account.NewAccountService(),
			Flights:  flightSvc,
			Booking:  bookingSvc,
		}, logger.Discard()),
		Registry: reg,
		Opener:   store,
		Flights:  flightSvc,
		Booking:  bookingSvc,
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)
	return s
}

func TestServers_RunAndShutdown(t *testing.T) {
	s := newTestServers(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	conn, err := grpc.NewClient(s.GRPCAddr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + s.HTTPAddr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	status, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status.GetStatus())
}

func TestNewServers_BadAddress(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Address: "127.0.0.1:0"},
		GRPC:   config.GRPCConfig{Address: "256.0.0.1:99999"},
	}
	_, err := NewServers(cfg, Deps{Logger: logger.Discard()})
	assert.Error(t, err)
}
