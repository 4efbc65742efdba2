package server

import (
	"context"
	"errors"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/protocol"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/account"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
)

const msgChatBusy = "a chat request is already in progress"

func success(data []byte) protocol.Response {
	return protocol.Response{Status: protocol.StatusSuccess, Data: data}
}

func status(s protocol.Status) protocol.Response {
	return protocol.Response{Status: s}
}

// failed answers StatusFailed with a text message for the client to show.
func failed(msg string) protocol.Response {
	return protocol.Response{Status: protocol.StatusFailed, Data: protocol.EncodeText(msg)}
}

// decodeValid decodes and validates a request payload. On failure it
// returns the response to send.
func decodeValid[T any](d *Dispatcher, data []byte, dec func([]byte) (T, error)) (T, *protocol.Response) {
	req, err := dec(data)
	if err != nil {
		resp := failed(err.Error())
		return req, &resp
	}
	if err := d.svc.Validator.Struct(req); err != nil {
		resp := failed(err.Error())
		return req, &resp
	}
	return req, nil
}

// storeError logs an unexpected store failure and answers Failed.
func (d *Dispatcher) storeError(sess Session, op string, err error) protocol.Response {
	d.logger.Error("request failed", "worker_id", sess.WorkerID(), "op", op, "error", err)
	return failed(err.Error())
}

func (d *Dispatcher) handle(ctx context.Context, sess Session) (repository.Handle, *protocol.Response) {
	h, err := sess.Handle(ctx)
	if err != nil {
		resp := d.storeError(sess, "open store handle", err)
		return nil, &resp
	}
	return h, nil
}

func (d *Dispatcher) login(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeLogin)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	err := d.svc.Accounts.Login(ctx, h, req.Username, req.Password)
	switch {
	case err == nil:
		d.logger.Info("user logged in", "worker_id", sess.WorkerID(), "username", req.Username)
		return success(nil)
	case errors.Is(err, account.ErrUserNotFound):
		return status(protocol.StatusUserNotFound)
	case errors.Is(err, account.ErrWrongPassword):
		return status(protocol.StatusPasswordError)
	default:
		return d.storeError(sess, "login", err)
	}
}

func (d *Dispatcher) register(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeRegister)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	err := d.svc.Accounts.Register(ctx, h, domain.User(req))
	switch {
	case err == nil:
		d.logger.Info("user registered", "worker_id", sess.WorkerID(), "username", req.Username)
		return success(nil)
	case errors.Is(err, account.ErrUsernameExists):
		return status(protocol.StatusUsernameExist)
	default:
		return d.storeError(sess, "register", err)
	}
}

func (d *Dispatcher) checkUsername(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeUsername)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	exists, err := d.svc.Accounts.CheckUsername(ctx, h, req.Username)
	if err != nil {
		return d.storeError(sess, "check username", err)
	}
	if exists {
		return status(protocol.StatusUsernameExist)
	}
	return success(nil)
}

func (d *Dispatcher) getUserInfo(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeUsername)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	user, err := d.svc.Accounts.GetUserInfo(ctx, h, req.Username)
	switch {
	case err == nil:
		return success(protocol.EncodeUser(user))
	case errors.Is(err, account.ErrUserNotFound):
		return status(protocol.StatusUserNotFound)
	default:
		return d.storeError(sess, "get user info", err)
	}
}

func (d *Dispatcher) updateUserInfo(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeUpdateUser)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	err := d.svc.Accounts.UpdateProfile(ctx, h, req.Username, req.RealName, req.Phone)
	switch {
	case err == nil:
		return success(nil)
	case errors.Is(err, account.ErrUserNotFound):
		return status(protocol.StatusUserNotFound)
	default:
		return d.storeError(sess, "update user info", err)
	}
}

func (d *Dispatcher) changePassword(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeChangePassword)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	err := d.svc.Accounts.ChangePassword(ctx, h, req.Username, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		return success(nil)
	case errors.Is(err, account.ErrUserNotFound):
		return status(protocol.StatusUserNotFound)
	case errors.Is(err, account.ErrWrongPassword):
		return status(protocol.StatusPasswordError)
	default:
		return d.storeError(sess, "change password", err)
	}
}

func (d *Dispatcher) flightQuery(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeFlightQuery)
	if bad != nil {
		return *bad
	}
	q, err := flights.ParseQuery(req.Departure, req.Destination, req.Date)
	if err != nil {
		return failed(err.Error())
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	list, err := d.svc.Flights.Search(ctx, h, q)
	if err != nil {
		return d.storeError(sess, "flight query", err)
	}
	if len(list) == 0 {
		return status(protocol.StatusFlightNotFound)
	}
	return success(protocol.EncodeFlights(list))
}

func (d *Dispatcher) getCities(ctx context.Context, sess Session, _ []byte) protocol.Response {
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}
	cities, err := d.svc.Flights.Cities(ctx, h)
	if err != nil {
		return d.storeError(sess, "get cities", err)
	}
	return success(protocol.EncodeTexts(cities))
}

func (d *Dispatcher) getOccupiedSeats(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeFlightRequest)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	seats, err := d.svc.Flights.OccupiedSeats(ctx, h, req.FlightID)
	if err != nil {
		return d.storeError(sess, "get occupied seats", err)
	}
	return success(protocol.EncodeTexts(seats))
}

func (d *Dispatcher) myOrders(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeUsername)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	orders, err := d.svc.Booking.Orders(ctx, h, req.Username)
	if err != nil {
		return d.storeError(sess, "my orders", err)
	}
	return success(protocol.EncodeOrders(orders))
}

func (d *Dispatcher) bookTicket(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeBookTicket)
	if bad != nil {
		return withEmptyOrder(*bad)
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return withEmptyOrder(*bad)
	}

	orderID, err := d.svc.Booking.BookTicket(ctx, h, booking.BookTicketInput{
		Username:   req.Username,
		FlightID:   req.FlightID,
		SeatNumber: req.SeatNumber,
	})
	if err != nil {
		st := d.bookingStatus(ctx, h, req.FlightID, err)
		d.logger.Info("booking rejected", "worker_id", sess.WorkerID(), "flight_id", req.FlightID, "status", st.String(), "error", err)
		return protocol.Response{Status: st, Data: protocol.EncodeText("")}
	}
	d.logger.Info("ticket booked", "worker_id", sess.WorkerID(), "order_id", orderID, "flight_id", req.FlightID)
	return success(protocol.EncodeText(orderID))
}

func (d *Dispatcher) cancelTicket(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeOrder)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	if err := d.svc.Booking.CancelTicket(ctx, h, req.OrderID); err != nil {
		d.logger.Info("cancel rejected", "worker_id", sess.WorkerID(), "order_id", req.OrderID, "error", err)
		return failed(err.Error())
	}
	d.logger.Info("ticket cancelled", "worker_id", sess.WorkerID(), "order_id", req.OrderID)
	return success(nil)
}

func (d *Dispatcher) changeTicket(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeChangeTicket)
	if bad != nil {
		return *bad
	}
	h, bad := d.handle(ctx, sess)
	if bad != nil {
		return *bad
	}

	orderID, err := d.svc.Booking.ChangeTicket(ctx, h, booking.ChangeTicketInput{
		OrderID:       req.OrderID,
		NewFlightID:   req.NewFlightID,
		NewSeatNumber: req.NewSeatNumber,
	})
	if err != nil {
		d.logger.Info("change rejected", "worker_id", sess.WorkerID(), "order_id", req.OrderID, "error", err)
		switch {
		case errors.Is(err, booking.ErrFlightNotFound):
			return protocol.Response{Status: protocol.StatusFlightNotFound, Data: protocol.EncodeText(err.Error())}
		case errors.Is(err, booking.ErrNoSeatsLeft):
			return protocol.Response{Status: protocol.StatusNoSeatsLeft, Data: protocol.EncodeText(err.Error())}
		default:
			return failed(err.Error())
		}
	}
	d.logger.Info("ticket changed", "worker_id", sess.WorkerID(), "old_order_id", req.OrderID, "order_id", orderID)
	return success(protocol.EncodeText(orderID))
}

// bookingStatus picks the status for a failed booking. Known engine errors
// map directly; anything else is classified by probing the flight.
func (d *Dispatcher) bookingStatus(ctx context.Context, h repository.Handle, flightID string, err error) protocol.Status {
	switch {
	case errors.Is(err, booking.ErrFlightNotFound):
		return protocol.StatusFlightNotFound
	case errors.Is(err, booking.ErrNoSeatsLeft):
		return protocol.StatusNoSeatsLeft
	case errors.Is(err, booking.ErrUserNotFound):
		return protocol.StatusUserNotFound
	case errors.Is(err, booking.ErrSeatTaken), errors.Is(err, booking.ErrInvalidSeat):
		return protocol.StatusFailed
	}

	rest, restErr := h.RestSeats(ctx, flightID)
	switch {
	case errors.Is(restErr, repository.ErrNotFound):
		return protocol.StatusFlightNotFound
	case restErr == nil && rest <= 0:
		return protocol.StatusNoSeatsLeft
	default:
		return protocol.StatusFailed
	}
}

func withEmptyOrder(resp protocol.Response) protocol.Response {
	resp.Data = protocol.EncodeText("")
	return resp
}

func (d *Dispatcher) aiChat(ctx context.Context, sess Session, data []byte) protocol.Response {
	req, bad := decodeValid(d, data, protocol.DecodeChat)
	if bad != nil {
		return *bad
	}
	if d.svc.Chat == nil {
		return failed("chat assistant is not configured")
	}

	// The profile lookup uses the worker's store handle, so it runs here
	// on the read loop rather than in the background goroutine.
	extra := d.chatContext(ctx, sess, req.Username)
	started := sess.Go(protocol.KindAIChat, func(ctx context.Context) protocol.Response {
		reply, err := d.svc.Chat.Complete(ctx, req.Message, extra)
		if err != nil {
			d.logger.Warn("chat relay failed", "worker_id", sess.WorkerID(), "error", err)
			return failed(err.Error())
		}
		return success(protocol.EncodeText(reply))
	})
	if !started {
		return failed(msgChatBusy)
	}
	return deferred
}
