package validation

import (
	"testing"

	"github.com/Domenick1991/ftms/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestValidator_RegisterRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(protocol.RegisterRequest{Username: "alice", Password: "secret1"}))

	err := v.Struct(protocol.RegisterRequest{Username: "", Password: "123"})
	assert.EqualError(t, err, "username is required; password must be at least 6 characters")
}

func TestValidator_SeatRule(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(protocol.BookTicketRequest{Username: "alice", FlightID: "CA100"}))
	assert.NoError(t, v.Struct(protocol.BookTicketRequest{Username: "alice", FlightID: "CA100", SeatNumber: "30F"}))

	err := v.Struct(protocol.BookTicketRequest{Username: "alice", FlightID: "CA100", SeatNumber: "31A"})
	assert.ErrorContains(t, err, `seatnumber "31A" is not on the seat map`)

	err = v.Struct(protocol.BookTicketRequest{Username: "alice", FlightID: "CA100", SeatNumber: "+1A"})
	assert.ErrorContains(t, err, `seatnumber "+1A" is not on the seat map`)
}

func TestValidator_FlightQueryDate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(protocol.FlightQueryRequest{Departure: "Beijing", Date: "2025-06-01"}))
	assert.ErrorContains(t, v.Struct(protocol.FlightQueryRequest{Date: "06/01/2025"}), "date must be formatted as 2006-01-02")
}

func TestValidator_ChangePassword(t *testing.T) {
	v := New()

	err := v.Struct(protocol.ChangePasswordRequest{Username: "alice", OldPassword: "secret1", NewPassword: "abc"})
	assert.ErrorContains(t, err, "newpassword must be at least 6 characters")
}
