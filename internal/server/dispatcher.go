package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Domenick1991/ftms/internal/chat"
	"github.com/Domenick1991/ftms/internal/metrics"
	"github.com/Domenick1991/ftms/internal/protocol"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/account"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/Domenick1991/ftms/internal/validation"
)

// ChatRelay answers free-form travel questions.
type ChatRelay interface {
	Complete(ctx context.Context, message, extra string) (string, error)
}

// Session is the part of a connection worker a handler may touch.
type Session interface {
	WorkerID() string
	// Handle returns the worker's store handle, opening it on first use.
	Handle(ctx context.Context) (repository.Handle, error)
	// Go runs fn outside the read loop and sends its response when it
	// returns. It reports false when a background request is already running.
	Go(kind protocol.RequestKind, fn func(ctx context.Context) protocol.Response) bool
}

type Services struct {
	Accounts  account.AccountUseCase
	Flights   flights.FlightUseCase
	Booking   booking.BookingUseCase
	Chat      ChatRelay
	Validator *validation.Validator
}

type handlerFunc func(ctx context.Context, sess Session, data []byte) protocol.Response

// statusDeferred marks a response that the handler will send later through
// Session.Go. It never reaches the wire.
const statusDeferred protocol.Status = -1

var deferred = protocol.Response{Status: statusDeferred}

// Dispatcher maps request kinds to handlers.
type Dispatcher struct {
	svc      Services
	handlers map[protocol.RequestKind]handlerFunc
	logger   *slog.Logger
}

func NewDispatcher(svc Services, logger *slog.Logger) *Dispatcher {
	if svc.Validator == nil {
		svc.Validator = validation.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{svc: svc, logger: logger}
	d.handlers = map[protocol.RequestKind]handlerFunc{
		protocol.KindLogin:            d.login,
		protocol.KindFlightQuery:      d.flightQuery,
		protocol.KindBookTicket:       d.bookTicket,
		protocol.KindMyOrders:         d.myOrders,
		protocol.KindGetUserInfo:      d.getUserInfo,
		protocol.KindUpdateUserInfo:   d.updateUserInfo,
		protocol.KindCancelTicket:     d.cancelTicket,
		protocol.KindRegister:         d.register,
		protocol.KindChangeTicket:     d.changeTicket,
		protocol.KindCheckUsername:    d.checkUsername,
		protocol.KindGetCities:        d.getCities,
		protocol.KindGetOccupiedSeats: d.getOccupiedSeats,
		protocol.KindAIChat:           d.aiChat,
		protocol.KindChangePassword:   d.changePassword,
	}
	return d
}

// Dispatch handles one request. ok is false when the response will be
// delivered later by the session.
func (d *Dispatcher) Dispatch(ctx context.Context, sess Session, req protocol.Request) (resp protocol.Response, ok bool) {
	handler, found := d.handlers[req.Kind]
	if !found {
		d.logger.Warn("unknown request kind", "worker_id", sess.WorkerID(), "kind", int32(req.Kind))
		resp = protocol.Response{Status: protocol.StatusFailed}
		observe(req.Kind, resp.Status)
		return resp, true
	}

	resp = d.safeCall(ctx, sess, req, handler)
	if resp.Status == statusDeferred {
		return protocol.Response{}, false
	}
	observe(req.Kind, resp.Status)
	return resp, true
}

func (d *Dispatcher) safeCall(ctx context.Context, sess Session, req protocol.Request, handler handlerFunc) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				"worker_id", sess.WorkerID(),
				"kind", req.Kind.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp = protocol.Response{Status: protocol.StatusFailed}
		}
	}()
	return handler(ctx, sess, req.Data)
}

func observe(kind protocol.RequestKind, status protocol.Status) {
	metrics.Requests.WithLabelValues(kind.String(), status.String()).Inc()
}

// chatContext describes the requesting user for the relay. Unknown users
// get no context.
func (d *Dispatcher) chatContext(ctx context.Context, sess Session, username string) string {
	if username == "" || d.svc.Accounts == nil {
		return ""
	}
	h, err := sess.Handle(ctx)
	if err != nil {
		return ""
	}
	user, err := d.svc.Accounts.GetUserInfo(ctx, h, username)
	if err != nil {
		return ""
	}
	return chat.UserContext(user)
}
