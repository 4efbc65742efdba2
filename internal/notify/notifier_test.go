package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/Domenick1991/ftms/internal/kafka"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		event kafka.TicketEvent
		want  string
	}{
		{
			name:  "booked",
			event: kafka.TicketEvent{Type: kafka.EventTicketBooked, Username: "alice", FlightID: "CA100", SeatNumber: "12C", OrderID: "o1"},
			want:  "Dear alice, your ticket on flight CA100 is confirmed: seat 12C, order o1.",
		},
		{
			name:  "cancelled",
			event: kafka.TicketEvent{Type: kafka.EventTicketCancelled, Username: "alice", FlightID: "CA100", SeatNumber: "12C", OrderID: "o1"},
			want:  "Dear alice, order o1 for flight CA100 seat 12C has been cancelled.",
		},
		{
			name: "changed",
			event: kafka.TicketEvent{
				Type: kafka.EventTicketChanged, Username: "alice",
				FlightID: "CA300", SeatNumber: "1A", OrderID: "o2",
				PrevFlightID: "CA100", PrevSeat: "12C", PrevOrderID: "o1",
			},
			want: "Dear alice, your trip moved from flight CA100 seat 12C to flight CA300 seat 1A. New order o2 replaces o1.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessage_UnknownType(t *testing.T) {
	_, err := Message(kafka.TicketEvent{Type: "refund"})
	assert.Error(t, err)
}

func TestNotifier_Notify(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(logger.InitWriter(&buf, "INFO", "json"))

	err := n.Notify(context.Background(), kafka.TicketEvent{Type: kafka.EventTicketBooked, Username: "bob", FlightID: "MU200", SeatNumber: "3B", OrderID: "o9"})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"notification sent"`)
	assert.Contains(t, buf.String(), `"username":"bob"`)

	buf.Reset()
	require.NoError(t, n.Notify(context.Background(), kafka.TicketEvent{Type: "refund"}))
	assert.Contains(t, buf.String(), "unsupported ticket event")
}
