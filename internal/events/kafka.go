package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelplan_backend/platform/logger"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventName  = "event-name"
	headerOccurredAt = "occurred-at"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies booking events onto a Kafka topic keyed by booking ID,
// so consumers see each booking's events in order.
type KafkaForwarder struct {
	writer messageWriter
	log    *logger.Logger
}

// envelope is the message value written to Kafka.
type envelope struct {
	Event      string    `json:"event"`
	BookingID  string    `json:"booking_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       Event     `json:"data"`
}

// NewKafkaForwarder creates a forwarder writing to topic on brokers.
func NewKafkaForwarder(brokers []string, topic string, log *logger.Logger) (*KafkaForwarder, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("kafka writer", "detail", fmt.Sprintf(msg, args...))
		}),
	}
	return newKafkaForwarder(writer, log), nil
}

func newKafkaForwarder(writer messageWriter, log *logger.Logger) *KafkaForwarder {
	return &KafkaForwarder{writer: writer, log: log}
}

// Attach subscribes the forwarder to every booking event on bus.
func (f *KafkaForwarder) Attach(bus Bus) {
	for _, name := range BookingEventNames {
		bus.Subscribe(name, f)
	}
}

// Handle implements Handler.
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	bookingEvent, ok := event.(BookingEvent)
	if !ok {
		return nil
	}

	value, err := json.Marshal(envelope{
		Event:      event.EventName(),
		BookingID:  bookingEvent.AggregateID(),
		OccurredAt: event.OccurredAt().UTC(),
		Data:       event,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}

	msg := kafka.Message{
		Key:   []byte(bookingEvent.AggregateID()),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: headerEventName, Value: []byte(event.EventName())},
			{Key: headerOccurredAt, Value: []byte(event.OccurredAt().UTC().Format(time.RFC3339Nano))},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("forward %s: %w", event.EventName(), err)
	}
	return nil
}

// Close flushes pending writes.
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}

var _ Handler = (*KafkaForwarder)(nil)
