package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidSeat(t *testing.T) {
	for _, seat := range []string{"1A", "9F", "10C", "29B", "30F"} {
		assert.True(t, ValidSeat(seat), seat)
	}
	for _, seat := range []string{"", "A", "0A", "01A", "31A", "1G", "1a", "100A", "-1A", "1",
		"+1A", " 1A", "1 A", "+9F", "1_A", "\u0661A", "1AA"} {
		assert.False(t, ValidSeat(seat), seat)
	}
}

func TestSeatNumber(t *testing.T) {
	assert.Equal(t, "1A", SeatNumber(1, 0))
	assert.Equal(t, "30F", SeatNumber(30, 5))
	assert.Equal(t, 180, SeatCount)
}

func TestFlightQuery_DayRange(t *testing.T) {
	q := FlightQuery{Date: mustDate(t, "2025-03-31")}
	from, to := q.DayRange()

	assert.Equal(t, "2025-03-31T00:00:00Z", from.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "2025-04-01T00:00:00Z", to.Format("2006-01-02T15:04:05Z07:00"))
}

func TestFlight_SameRoute(t *testing.T) {
	a := Flight{Departure: "Beijing", Destination: "Shanghai"}
	assert.True(t, a.SameRoute(Flight{Departure: "Beijing", Destination: "Shanghai", FlightID: "X"}))
	assert.False(t, a.SameRoute(Flight{Departure: "Shanghai", Destination: "Beijing"}))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
