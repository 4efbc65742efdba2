package protocol

import (
	"fmt"
	"strconv"
)

// RequestKind tags a request frame. Values are part of the wire format.
type RequestKind int32

const (
	KindLogin RequestKind = iota + 1
	KindFlightQuery
	KindBookTicket
	KindMyOrders
	KindGetUserInfo
	KindUpdateUserInfo
	KindCancelTicket
	KindRegister
	KindChangeTicket
	KindCheckUsername
	KindGetCities
	KindGetOccupiedSeats
	KindAIChat
	KindChangePassword
)

var kindNames = map[RequestKind]string{
	KindLogin:            "login",
	KindFlightQuery:      "flight_query",
	KindBookTicket:       "book_ticket",
	KindMyOrders:         "my_orders",
	KindGetUserInfo:      "get_user_info",
	KindUpdateUserInfo:   "update_user_info",
	KindCancelTicket:     "cancel_ticket",
	KindRegister:         "register",
	KindChangeTicket:     "change_ticket",
	KindCheckUsername:    "check_username",
	KindGetCities:        "get_cities",
	KindGetOccupiedSeats: "get_occupied_seats",
	KindAIChat:           "ai_chat",
	KindChangePassword:   "change_password",
}

func (k RequestKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Status is the first field of every response.
type Status int32

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusUserNotFound
	StatusPasswordError
	StatusFlightNotFound
	StatusNoSeatsLeft
	StatusUsernameExist
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusUserNotFound:
		return "user_not_found"
	case StatusPasswordError:
		return "password_error"
	case StatusFlightNotFound:
		return "flight_not_found"
	case StatusNoSeatsLeft:
		return "no_seats_left"
	case StatusUsernameExist:
		return "username_exist"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Request is a decoded request frame payload.
type Request struct {
	Kind RequestKind
	Data []byte
}

// Response is one reply to a request.
type Response struct {
	Status Status
	Data   []byte
}

func EncodeRequest(req Request) []byte {
	return NewWriter().Int32(int32(req.Kind)).Blob(req.Data).Bytes()
}

func DecodeRequest(payload []byte) (Request, error) {
	r := NewReader(payload)
	kind := RequestKind(r.Int32())
	data := r.Blob()
	if err := r.Err(); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return Request{Kind: kind, Data: data}, nil
}

func EncodeResponse(resp Response) []byte {
	return NewWriter().Int32(int32(resp.Status)).Blob(resp.Data).Bytes()
}

func DecodeResponse(payload []byte) (Response, error) {
	r := NewReader(payload)
	status := Status(r.Int32())
	data := r.Blob()
	if err := r.Err(); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return Response{Status: status, Data: data}, nil
}
