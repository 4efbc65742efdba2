package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/protocol"
	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/repository/memory"
	"github.com/Domenick1991/ftms/internal/repository/sqlitestore"
	"github.com/Domenick1991/ftms/internal/service/account"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var departure = time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local)

// fakeRelay answers with a fixed reply once release is closed, or
// immediately when release is nil.
type fakeRelay struct {
	release   chan struct{}
	calls     atomic.Int32
	cancelled atomic.Int32
	lastExtra atomic.Value
}

func (f *fakeRelay) Complete(ctx context.Context, message, extra string) (string, error) {
	f.calls.Add(1)
	f.lastExtra.Store(extra)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			f.cancelled.Add(1)
			return "", ctx.Err()
		}
	}
	return "reply to " + message, nil
}

type testEnv struct {
	store    *memory.Store
	registry *registry.Registry
	server   *Server
	addr     string
}

func seed(t *testing.T, store repository.Opener, ca100Seats int) {
	t.Helper()
	ctx := context.Background()
	h, err := store.Open(ctx)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.CreateUser(ctx, domain.User{Username: "alice", Password: "secret1", RealName: "Alice", Phone: "100"}))
	require.NoError(t, h.CreateUser(ctx, domain.User{Username: "bob", Password: "secret2"}))
	require.NoError(t, h.AddFlight(ctx, domain.Flight{FlightID: "CA100", Departure: "Beijing", Destination: "Shanghai", DepartTime: departure, ArriveTime: departure.Add(2 * time.Hour), Price: 1200, RestSeats: ca100Seats}))
	require.NoError(t, h.AddFlight(ctx, domain.Flight{FlightID: "CA300", Departure: "Beijing", Destination: "Shanghai", DepartTime: departure.Add(4 * time.Hour), ArriveTime: departure.Add(6 * time.Hour), Price: 900, RestSeats: 10}))
	require.NoError(t, h.AddFlight(ctx, domain.Flight{FlightID: "MU200", Departure: "Shanghai", Destination: "Guangzhou", DepartTime: departure, ArriveTime: departure.Add(2 * time.Hour), Price: 800, RestSeats: 10}))
}

func newDispatcher(relay ChatRelay) *Dispatcher {
	svc := Services{
		Accounts: account.NewAccountService(),
		Flights:  flights.NewFlightService(nil, logger.Discard()),
		Booking:  booking.NewBookingService(booking.WithLogger(logger.Discard())),
	}
	if relay != nil {
		svc.Chat = relay
	}
	return NewDispatcher(svc, logger.Discard())
}

func startServer(t *testing.T, ca100Seats int, relay ChatRelay) *testEnv {
	t.Helper()
	store := memory.New()
	seed(t, store, ca100Seats)

	reg := registry.New(store, registry.WithLogger(logger.Discard()))
	srv := New(config.ServerConfig{Address: "127.0.0.1:0", WriteTimeoutSeconds: 5}, newDispatcher(relay), reg, logger.Discard())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-served)
		reg.CloseAll()
	})
	return &testEnv{store: store, registry: reg, server: srv, addr: srv.Addr().String()}
}

type client struct {
	t      *testing.T
	conn   net.Conn
	frames *protocol.FrameBuffer
}

func dial(t *testing.T, env *testEnv) *client {
	t.Helper()
	conn, err := net.Dial("tcp", env.addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, frames: protocol.NewFrameBuffer(0)}
}

func (c *client) send(kind protocol.RequestKind, data []byte) {
	c.t.Helper()
	_, err := c.conn.Write(protocol.EncodeFrame(protocol.EncodeRequest(protocol.Request{Kind: kind, Data: data})))
	require.NoError(c.t, err)
}

func (c *client) recv() protocol.Response {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1024)
	for {
		payload, ok, err := c.frames.Next()
		require.NoError(c.t, err)
		if ok {
			resp, err := protocol.DecodeResponse(payload)
			require.NoError(c.t, err)
			return resp
		}
		n, err := c.conn.Read(buf)
		require.NoError(c.t, err)
		c.frames.Feed(buf[:n])
	}
}

func (c *client) call(kind protocol.RequestKind, data []byte) protocol.Response {
	c.t.Helper()
	c.send(kind, data)
	return c.recv()
}

func text(t *testing.T, data []byte) string {
	t.Helper()
	s, err := protocol.DecodeText(data)
	require.NoError(t, err)
	return s
}

func TestServer_AccountFlow(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	resp := c.call(protocol.KindRegister, protocol.RegisterRequest{Username: "carol", Password: "secret3", RealName: "Carol"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)

	resp = c.call(protocol.KindRegister, protocol.RegisterRequest{Username: "carol", Password: "another"}.Encode())
	assert.Equal(t, protocol.StatusUsernameExist, resp.Status)

	resp = c.call(protocol.KindCheckUsername, protocol.UsernameRequest{Username: "carol"}.Encode())
	assert.Equal(t, protocol.StatusUsernameExist, resp.Status)
	resp = c.call(protocol.KindCheckUsername, protocol.UsernameRequest{Username: "dave"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)

	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "carol", Password: "secret3"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "carol", Password: "wrong"}.Encode())
	assert.Equal(t, protocol.StatusPasswordError, resp.Status)
	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "nobody", Password: "x"}.Encode())
	assert.Equal(t, protocol.StatusUserNotFound, resp.Status)

	resp = c.call(protocol.KindUpdateUserInfo, protocol.UpdateUserRequest{Username: "carol", RealName: "Carol C", Phone: "555"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)

	resp = c.call(protocol.KindGetUserInfo, protocol.UsernameRequest{Username: "carol"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	user, err := protocol.DecodeUser(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, domain.User{Username: "carol", RealName: "Carol C", Phone: "555"}, user)

	resp = c.call(protocol.KindChangePassword, protocol.ChangePasswordRequest{Username: "carol", OldPassword: "bad", NewPassword: "newsecret"}.Encode())
	assert.Equal(t, protocol.StatusPasswordError, resp.Status)
	resp = c.call(protocol.KindChangePassword, protocol.ChangePasswordRequest{Username: "carol", OldPassword: "secret3", NewPassword: "newsecret"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "carol", Password: "newsecret"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
}

func TestServer_BookingFlow(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	resp := c.call(protocol.KindFlightQuery, protocol.FlightQueryRequest{Departure: "Bei", Destination: "Shang"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	found, err := protocol.DecodeFlights(resp.Data)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "CA100", found[0].FlightID)

	resp = c.call(protocol.KindFlightQuery, protocol.FlightQueryRequest{Departure: "Tokyo"}.Encode())
	assert.Equal(t, protocol.StatusFlightNotFound, resp.Status)

	resp = c.call(protocol.KindBookTicket, protocol.BookTicketRequest{Username: "alice", FlightID: "CA100", SeatNumber: "12C"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	orderID := text(t, resp.Data)
	assert.NotEmpty(t, orderID)

	resp = c.call(protocol.KindGetOccupiedSeats, protocol.FlightRequest{FlightID: "CA100"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	seats, err := protocol.DecodeTexts(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"12C"}, seats)

	resp = c.call(protocol.KindMyOrders, protocol.UsernameRequest{Username: "alice"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	orders, err := protocol.DecodeOrders(resp.Data)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].OrderID)
	assert.Equal(t, "Beijing", orders[0].Departure)

	resp = c.call(protocol.KindChangeTicket, protocol.ChangeTicketRequest{OrderID: orderID, NewFlightID: "MU200"}.Encode())
	assert.Equal(t, protocol.StatusFailed, resp.Status)

	resp = c.call(protocol.KindChangeTicket, protocol.ChangeTicketRequest{OrderID: orderID, NewFlightID: "CA300"}.Encode())
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	newOrderID := text(t, resp.Data)
	assert.NotEqual(t, orderID, newOrderID)

	resp = c.call(protocol.KindCancelTicket, protocol.OrderRequest{OrderID: newOrderID}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	resp = c.call(protocol.KindCancelTicket, protocol.OrderRequest{OrderID: newOrderID}.Encode())
	assert.Equal(t, protocol.StatusFailed, resp.Status)
	assert.NotEmpty(t, text(t, resp.Data))

	resp = c.call(protocol.KindGetCities, nil)
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	cities, err := protocol.DecodeTexts(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beijing", "Guangzhou", "Shanghai"}, cities)
}

func TestServer_BookingFailures(t *testing.T) {
	env := startServer(t, 0, nil)
	c := dial(t, env)

	tests := []struct {
		name string
		req  protocol.BookTicketRequest
		want protocol.Status
	}{
		{"unknown flight", protocol.BookTicketRequest{Username: "alice", FlightID: "ZZ999"}, protocol.StatusFlightNotFound},
		{"sold out", protocol.BookTicketRequest{Username: "alice", FlightID: "CA100"}, protocol.StatusNoSeatsLeft},
		{"unknown user", protocol.BookTicketRequest{Username: "nobody", FlightID: "MU200"}, protocol.StatusUserNotFound},
		{"bad seat", protocol.BookTicketRequest{Username: "alice", FlightID: "MU200", SeatNumber: "99Z"}, protocol.StatusFailed},
		{"empty flight id", protocol.BookTicketRequest{Username: "alice"}, protocol.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.call(protocol.KindBookTicket, tt.req.Encode())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "", text(t, resp.Data))
		})
	}
}

func TestServer_UnknownKind(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	resp := c.call(protocol.RequestKind(99), []byte("whatever"))
	assert.Equal(t, protocol.StatusFailed, resp.Status)
	assert.Empty(t, resp.Data)

	// The connection stays usable.
	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "alice", Password: "secret1"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
}

func TestServer_ValidationMessage(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	resp := c.call(protocol.KindRegister, protocol.RegisterRequest{Username: "eve", Password: "123"}.Encode())
	assert.Equal(t, protocol.StatusFailed, resp.Status)
	assert.Contains(t, text(t, resp.Data), "password must be at least 6 characters")

	resp = c.call(protocol.KindLogin, []byte{0, 0})
	assert.Equal(t, protocol.StatusFailed, resp.Status)
}

func TestServer_PartialAndBatchedFrames(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	login := protocol.EncodeFrame(protocol.EncodeRequest(protocol.Request{
		Kind: protocol.KindLogin,
		Data: protocol.LoginRequest{Username: "alice", Password: "secret1"}.Encode(),
	}))
	for _, b := range login {
		_, err := c.conn.Write([]byte{b})
		require.NoError(t, err)
	}
	assert.Equal(t, protocol.StatusSuccess, c.recv().Status)

	wrong := protocol.EncodeFrame(protocol.EncodeRequest(protocol.Request{
		Kind: protocol.KindLogin,
		Data: protocol.LoginRequest{Username: "alice", Password: "nope"}.Encode(),
	}))
	batch := append(append([]byte{}, login...), wrong...)
	_, err := c.conn.Write(batch)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, c.recv().Status)
	assert.Equal(t, protocol.StatusPasswordError, c.recv().Status)
}

func TestServer_OversizedFrameClosesConnection(t *testing.T) {
	env := startServer(t, 5, nil)
	c := dial(t, env)

	_, err := c.conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.conn.Read(make([]byte, 16))
	assert.Error(t, err)
}

func TestServer_LastSeatRace(t *testing.T) {
	env := startServer(t, 1, nil)
	clients := []*client{dial(t, env), dial(t, env)}
	users := []string{"alice", "bob"}

	statuses := make([]protocol.Status, len(clients))
	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i].send(protocol.KindBookTicket, protocol.BookTicketRequest{Username: users[i], FlightID: "CA100"}.Encode())
		}(i)
	}
	wg.Wait()
	for i := range clients {
		statuses[i] = clients[i].recv().Status
	}

	assert.ElementsMatch(t, []protocol.Status{protocol.StatusSuccess, protocol.StatusNoSeatsLeft}, statuses)
	assert.Len(t, env.store.Tickets(), 1)
}

func TestServer_ChatInFlightGuard(t *testing.T) {
	relay := &fakeRelay{release: make(chan struct{})}
	env := startServer(t, 5, relay)
	c := dial(t, env)

	c.send(protocol.KindAIChat, protocol.ChatRequest{Username: "alice", Message: "first"}.Encode())
	require.Eventually(t, func() bool { return relay.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	resp := c.call(protocol.KindAIChat, protocol.ChatRequest{Username: "alice", Message: "second"}.Encode())
	assert.Equal(t, protocol.StatusFailed, resp.Status)
	assert.Equal(t, msgChatBusy, text(t, resp.Data))

	// Other requests are still served while the chat call is pending.
	resp = c.call(protocol.KindLogin, protocol.LoginRequest{Username: "alice", Password: "secret1"}.Encode())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)

	close(relay.release)
	resp = c.recv()
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "reply to first", text(t, resp.Data))
	assert.Contains(t, relay.lastExtra.Load(), "Alice (account alice)")

	require.Eventually(t, func() bool {
		c.send(protocol.KindAIChat, protocol.ChatRequest{Message: "third"}.Encode())
		return c.recv().Status == protocol.StatusSuccess
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_DisconnectCancelsChatAndReleasesHandle(t *testing.T) {
	relay := &fakeRelay{release: make(chan struct{})}
	env := startServer(t, 5, relay)
	c := dial(t, env)

	c.send(protocol.KindAIChat, protocol.ChatRequest{Username: "alice", Message: "hello"}.Encode())
	require.Eventually(t, func() bool { return relay.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.registry.Stats().Open)

	require.NoError(t, c.conn.Close())

	require.Eventually(t, func() bool {
		return relay.cancelled.Load() == 1 && env.registry.Stats().Open == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownDisconnectsClients(t *testing.T) {
	store := memory.New()
	seed(t, store, 5)
	reg := registry.New(store, registry.WithLogger(logger.Discard()))
	srv := New(config.ServerConfig{Address: "127.0.0.1:0"}, newDispatcher(nil), reg, logger.Discard())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()

	c := dial(t, &testEnv{addr: srv.Addr().String()})
	assert.Equal(t, protocol.StatusSuccess, c.call(protocol.KindLogin, protocol.LoginRequest{Username: "alice", Password: "secret1"}.Encode()).Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-served)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := c.conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, reg.Stats().Open)
}

func TestServer_ExhaustedPoolAnswersFailed(t *testing.T) {
	store, err := sqlitestore.Open(sqlitestore.Config{Path: filepath.Join(t.TempDir(), "ftms.db"), PoolSize: 2})
	require.NoError(t, err)
	seed(t, store, 5)
	reg := registry.New(store, registry.WithLogger(logger.Discard()), registry.WithOpenTimeout(200*time.Millisecond))
	srv := New(config.ServerConfig{Address: "127.0.0.1:0"}, newDispatcher(nil), reg, logger.Discard())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-served)
		reg.CloseAll()
		assert.NoError(t, store.Close())
	})

	env := &testEnv{addr: srv.Addr().String()}
	login := protocol.LoginRequest{Username: "alice", Password: "secret1"}.Encode()
	c1, c2, c3 := dial(t, env), dial(t, env), dial(t, env)

	assert.Equal(t, protocol.StatusSuccess, c1.call(protocol.KindLogin, login).Status)
	assert.Equal(t, protocol.StatusSuccess, c2.call(protocol.KindLogin, login).Status)
	assert.Equal(t, protocol.StatusFailed, c3.call(protocol.KindLogin, login).Status)

	// Workers that already hold a handle keep being served.
	assert.Equal(t, protocol.StatusSuccess, c1.call(protocol.KindGetCities, nil).Status)

	require.NoError(t, c1.conn.Close())
	require.Eventually(t, func() bool { return reg.Stats().Open == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, protocol.StatusSuccess, c3.call(protocol.KindLogin, login).Status)
}

func TestServer_ServeWithoutListen(t *testing.T) {
	srv := New(config.ServerConfig{}, newDispatcher(nil), nil, nil)
	err := srv.Serve(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, net.ErrClosed))
}
