package protocol

import (
	"testing"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookTicket_SeatIsOptional(t *testing.T) {
	legacy := NewWriter().Text("alice").Text("CA100").Bytes()

	req, err := DecodeBookTicket(legacy)

	require.NoError(t, err)
	assert.Equal(t, BookTicketRequest{Username: "alice", FlightID: "CA100"}, req)

	req, err = DecodeBookTicket(BookTicketRequest{Username: "bob", FlightID: "MU200", SeatNumber: "12C"}.Encode())
	require.NoError(t, err)
	assert.Equal(t, "12C", req.SeatNumber)
}

func TestDecodeFlightQuery_DateIsOptional(t *testing.T) {
	req, err := DecodeFlightQuery(NewWriter().Text("Bei").Text("").Bytes())

	require.NoError(t, err)
	assert.Equal(t, "Bei", req.Departure)
	assert.Empty(t, req.Date)
}

func TestDecodeChangePassword_Truncated(t *testing.T) {
	_, err := DecodeChangePassword(NewWriter().Text("alice").Bytes())
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestUserRequests_ShareLayout(t *testing.T) {
	data := RegisterRequest{Username: "alice", Password: "secret1", RealName: "Alice", Phone: "123"}.Encode()

	login, err := DecodeLogin(data)
	require.NoError(t, err)
	assert.Equal(t, "alice", login.Username)
	assert.Equal(t, "secret1", login.Password)

	user, err := DecodeUser(data)
	require.NoError(t, err)
	assert.Equal(t, domain.User{Username: "alice", Password: "secret1", RealName: "Alice", Phone: "123"}, user)
}

func TestFlights_RoundTrip(t *testing.T) {
	dep := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	flights := []domain.Flight{
		{
			FlightID: "CA100", Departure: "Beijing", Destination: "Shanghai",
			DepartureAirport: "PEK", ArrivalAirport: "SHA",
			DepartTime: dep, ArriveTime: dep.Add(2 * time.Hour),
			Price: 980.5, RestSeats: 3,
		},
		{FlightID: "MU200", Departure: "Shanghai", Destination: "Beijing"},
	}

	got, err := DecodeFlights(EncodeFlights(flights))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CA100", got[0].FlightID)
	assert.True(t, dep.Equal(got[0].DepartTime))
	assert.Equal(t, 980.5, got[0].Price)
	assert.Equal(t, 3, got[0].RestSeats)
	assert.True(t, got[1].DepartTime.IsZero())
}

func TestOrders_EmptyList(t *testing.T) {
	data := EncodeOrders(nil)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	got, err := DecodeOrders(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOrders_RoundTrip(t *testing.T) {
	booked := time.UnixMilli(1717000000000)
	orders := []domain.Order{{
		OrderID: "o-1", Username: "alice", FlightID: "CA100", BookTime: booked,
		SeatNumber: "1A", Departure: "Beijing", Destination: "Shanghai",
	}}

	got, err := DecodeOrders(EncodeOrders(orders))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1A", got[0].SeatNumber)
	assert.True(t, booked.Equal(got[0].BookTime))
	assert.Equal(t, "Shanghai", got[0].Destination)
}

func TestTexts_RoundTrip(t *testing.T) {
	got, err := DecodeTexts(EncodeTexts([]string{"Beijing", "Shanghai"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Beijing", "Shanghai"}, got)
}
