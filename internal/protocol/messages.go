package protocol

import (
	"fmt"

	"github.com/Domenick1991/ftms/internal/domain"
)

// Request payloads. The validate tags are checked by the dispatcher before
// any store access.

type LoginRequest struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required"`
	RealName string
	Phone    string
}

type RegisterRequest struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,min=6,max=64"`
	RealName string `validate:"max=64"`
	Phone    string `validate:"max=32"`
}

type UpdateUserRequest struct {
	Username string `validate:"required,max=64"`
	Password string
	RealName string `validate:"max=64"`
	Phone    string `validate:"max=32"`
}

type UsernameRequest struct {
	Username string `validate:"required,max=64"`
}

type FlightQueryRequest struct {
	Departure   string `validate:"max=64"`
	Destination string `validate:"max=64"`
	Date        string `validate:"omitempty,datetime=2006-01-02"`
}

type BookTicketRequest struct {
	Username   string `validate:"required,max=64"`
	FlightID   string `validate:"required,max=32"`
	SeatNumber string `validate:"omitempty,seat"`
}

type OrderRequest struct {
	OrderID string `validate:"required,max=64"`
}

type ChangeTicketRequest struct {
	OrderID       string `validate:"required,max=64"`
	NewFlightID   string `validate:"required,max=32"`
	NewSeatNumber string `validate:"omitempty,seat"`
}

type FlightRequest struct {
	FlightID string `validate:"required,max=32"`
}

type ChatRequest struct {
	Username string `validate:"max=64"`
	Message  string `validate:"required,max=8000"`
}

type ChangePasswordRequest struct {
	Username    string `validate:"required,max=64"`
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=6,max=64"`
}

func decode[T any](data []byte, what string, read func(r *Reader) T) (T, error) {
	r := NewReader(data)
	v := read(r)
	if err := r.Err(); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", what, err)
	}
	return v, nil
}

// optionalText reads a trailing field that older clients omit.
func optionalText(r *Reader) string {
	if r.Remaining() == 0 {
		return ""
	}
	return r.Text()
}

func writeUser(w *Writer, u domain.User) *Writer {
	return w.Text(u.Username).Text(u.Password).Text(u.RealName).Text(u.Phone)
}

func readUser(r *Reader) domain.User {
	return domain.User{
		Username: r.Text(),
		Password: r.Text(),
		RealName: r.Text(),
		Phone:    r.Text(),
	}
}

func EncodeUser(u domain.User) []byte {
	return writeUser(NewWriter(), u).Bytes()
}

func DecodeUser(data []byte) (domain.User, error) {
	return decode(data, "user", readUser)
}

func (req LoginRequest) Encode() []byte {
	return EncodeUser(domain.User(req))
}

func DecodeLogin(data []byte) (LoginRequest, error) {
	u, err := DecodeUser(data)
	return LoginRequest(u), err
}

func (req RegisterRequest) Encode() []byte {
	return EncodeUser(domain.User(req))
}

func DecodeRegister(data []byte) (RegisterRequest, error) {
	u, err := DecodeUser(data)
	return RegisterRequest(u), err
}

func (req UpdateUserRequest) Encode() []byte {
	return EncodeUser(domain.User(req))
}

func DecodeUpdateUser(data []byte) (UpdateUserRequest, error) {
	u, err := DecodeUser(data)
	return UpdateUserRequest(u), err
}

func (req UsernameRequest) Encode() []byte {
	return NewWriter().Text(req.Username).Bytes()
}

func DecodeUsername(data []byte) (UsernameRequest, error) {
	return decode(data, "username", func(r *Reader) UsernameRequest {
		return UsernameRequest{Username: r.Text()}
	})
}

func (req FlightQueryRequest) Encode() []byte {
	return NewWriter().Text(req.Departure).Text(req.Destination).Text(req.Date).Bytes()
}

func DecodeFlightQuery(data []byte) (FlightQueryRequest, error) {
	return decode(data, "flight query", func(r *Reader) FlightQueryRequest {
		return FlightQueryRequest{Departure: r.Text(), Destination: r.Text(), Date: optionalText(r)}
	})
}

func (req BookTicketRequest) Encode() []byte {
	return NewWriter().Text(req.Username).Text(req.FlightID).Text(req.SeatNumber).Bytes()
}

func DecodeBookTicket(data []byte) (BookTicketRequest, error) {
	return decode(data, "book ticket", func(r *Reader) BookTicketRequest {
		return BookTicketRequest{Username: r.Text(), FlightID: r.Text(), SeatNumber: optionalText(r)}
	})
}

func (req OrderRequest) Encode() []byte {
	return NewWriter().Text(req.OrderID).Bytes()
}

func DecodeOrder(data []byte) (OrderRequest, error) {
	return decode(data, "order", func(r *Reader) OrderRequest {
		return OrderRequest{OrderID: r.Text()}
	})
}

func (req ChangeTicketRequest) Encode() []byte {
	return NewWriter().Text(req.OrderID).Text(req.NewFlightID).Text(req.NewSeatNumber).Bytes()
}

func DecodeChangeTicket(data []byte) (ChangeTicketRequest, error) {
	return decode(data, "change ticket", func(r *Reader) ChangeTicketRequest {
		return ChangeTicketRequest{OrderID: r.Text(), NewFlightID: r.Text(), NewSeatNumber: optionalText(r)}
	})
}

func (req FlightRequest) Encode() []byte {
	return NewWriter().Text(req.FlightID).Bytes()
}

func DecodeFlightRequest(data []byte) (FlightRequest, error) {
	return decode(data, "flight", func(r *Reader) FlightRequest {
		return FlightRequest{FlightID: r.Text()}
	})
}

func (req ChatRequest) Encode() []byte {
	return NewWriter().Text(req.Username).Text(req.Message).Bytes()
}

func DecodeChat(data []byte) (ChatRequest, error) {
	return decode(data, "chat", func(r *Reader) ChatRequest {
		return ChatRequest{Username: r.Text(), Message: r.Text()}
	})
}

func (req ChangePasswordRequest) Encode() []byte {
	return NewWriter().Text(req.Username).Text(req.OldPassword).Text(req.NewPassword).Bytes()
}

func DecodeChangePassword(data []byte) (ChangePasswordRequest, error) {
	return decode(data, "change password", func(r *Reader) ChangePasswordRequest {
		return ChangePasswordRequest{Username: r.Text(), OldPassword: r.Text(), NewPassword: r.Text()}
	})
}

// Response payloads.

func EncodeText(s string) []byte {
	return NewWriter().Text(s).Bytes()
}

func DecodeText(data []byte) (string, error) {
	return decode(data, "text", func(r *Reader) string { return r.Text() })
}

func EncodeTexts(list []string) []byte {
	return NewWriter().Texts(list).Bytes()
}

func DecodeTexts(data []byte) ([]string, error) {
	return decode(data, "text list", func(r *Reader) []string { return r.Texts() })
}

func EncodeFlights(flights []domain.Flight) []byte {
	w := NewWriter().Uint32(uint32(len(flights)))
	for _, f := range flights {
		w.Text(f.FlightID).Text(f.Departure).Text(f.Destination).
			Text(f.DepartureAirport).Text(f.ArrivalAirport).
			Time(f.DepartTime).Time(f.ArriveTime).
			Float64(f.Price).Int32(int32(f.RestSeats))
	}
	return w.Bytes()
}

func DecodeFlights(data []byte) ([]domain.Flight, error) {
	return decode(data, "flights", func(r *Reader) []domain.Flight {
		n := r.Uint32()
		var flights []domain.Flight
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			flights = append(flights, domain.Flight{
				FlightID:         r.Text(),
				Departure:        r.Text(),
				Destination:      r.Text(),
				DepartureAirport: r.Text(),
				ArrivalAirport:   r.Text(),
				DepartTime:       r.Time(),
				ArriveTime:       r.Time(),
				Price:            r.Float64(),
				RestSeats:        int(r.Int32()),
			})
		}
		return flights
	})
}

func EncodeOrders(orders []domain.Order) []byte {
	w := NewWriter().Uint32(uint32(len(orders)))
	for _, o := range orders {
		w.Text(o.OrderID).Text(o.Username).Text(o.FlightID).Time(o.BookTime).Text(o.SeatNumber).
			Text(o.Departure).Text(o.Destination).Text(o.DepartureAirport).Text(o.ArrivalAirport).
			Time(o.DepartTime).Time(o.ArriveTime)
	}
	return w.Bytes()
}

func DecodeOrders(data []byte) ([]domain.Order, error) {
	return decode(data, "orders", func(r *Reader) []domain.Order {
		n := r.Uint32()
		var orders []domain.Order
		for i := uint32(0); i < n && r.Err() == nil; i++ {
			orders = append(orders, domain.Order{
				OrderID:          r.Text(),
				Username:         r.Text(),
				FlightID:         r.Text(),
				BookTime:         r.Time(),
				SeatNumber:       r.Text(),
				Departure:        r.Text(),
				Destination:      r.Text(),
				DepartureAirport: r.Text(),
				ArrivalAirport:   r.Text(),
				DepartTime:       r.Time(),
				ArriveTime:       r.Time(),
			})
		}
		return orders
	})
}
