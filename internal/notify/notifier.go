// Package notify turns ticket events into customer notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/ftms/internal/kafka"
)

// Notifier writes the notification to the log. Delivery channels (SMS,
// e-mail) plug in behind Notify.
type Notifier struct {
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, event kafka.TicketEvent) error {
	msg, err := Message(event)
	if err != nil {
		n.logger.Warn("unsupported ticket event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}
	n.logger.InfoContext(ctx, "notification sent",
		"username", event.Username,
		"type", event.Type,
		"order_id", event.OrderID,
		"message", msg,
	)
	return nil
}

// Message renders the text the customer receives for event.
func Message(event kafka.TicketEvent) (string, error) {
	switch event.Type {
	case kafka.EventTicketBooked:
		return fmt.Sprintf("Dear %s, your ticket on flight %s is confirmed: seat %s, order %s.",
			event.Username, event.FlightID, event.SeatNumber, event.OrderID), nil
	case kafka.EventTicketCancelled:
		return fmt.Sprintf("Dear %s, order %s for flight %s seat %s has been cancelled.",
			event.Username, event.OrderID, event.FlightID, event.SeatNumber), nil
	case kafka.EventTicketChanged:
		return fmt.Sprintf("Dear %s, your trip moved from flight %s seat %s to flight %s seat %s. New order %s replaces %s.",
			event.Username, event.PrevFlightID, event.PrevSeat, event.FlightID, event.SeatNumber, event.OrderID, event.PrevOrderID), nil
	default:
		return "", fmt.Errorf("unknown event type %q", event.Type)
	}
}
