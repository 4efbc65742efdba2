package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// DecodeTicketEvent parses a message written by Producer.Publish.
func DecodeTicketEvent(msg kafka.Message) (TicketEvent, error) {
	var event TicketEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return TicketEvent{}, fmt.Errorf("decode ticket event at offset %d: %w", msg.Offset, err)
	}
	if event.Type == "" {
		return TicketEvent{}, fmt.Errorf("decode ticket event at offset %d: missing type", msg.Offset)
	}
	return event, nil
}

// ConsumeTicketEvents reads until ctx is cancelled. Malformed messages are
// logged and skipped; a handler error stops consumption.
func (c *Consumer) ConsumeTicketEvents(ctx context.Context, handler func(context.Context, TicketEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		event, err := DecodeTicketEvent(msg)
		if err != nil {
			c.logger.Warn("skipping kafka message", "topic", msg.Topic, "error", err)
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}
