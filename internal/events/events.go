// Package events publishes booking submission outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/domain"
)

const (
	TypeBookingSubmitted = "booking.submitted"
	TypeBookingFailed    = "booking.failed"
)

// SubmissionEvent is the message value, keyed by session ID so all events of
// one session land on the same partition.
type SubmissionEvent struct {
	Type         string                  `json:"type"`
	SubmissionID uuid.UUID               `json:"submissionId"`
	SessionID    uuid.UUID               `json:"sessionId"`
	BookingID    string                  `json:"bookingId,omitempty"`
	Status       domain.SubmissionStatus `json:"status"`
	Total        int64                   `json:"total"`
	Flights      []string                `json:"flights"`
	Error        string                  `json:"error,omitempty"`
	OccurredAt   time.Time               `json:"occurredAt"`
}

type Publisher interface {
	PublishSubmission(ctx context.Context, ev SubmissionEvent) error
	Close() error
}

type Config struct {
	Brokers  []string
	Topic    string
	RetryMax int
	Timeout  time.Duration
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher dials the brokers with an idempotent, all-acks producer.
func NewKafkaPublisher(cfg Config, logger *slog.Logger) (*KafkaPublisher, error) {
	const op = "events.NewKafkaPublisher"

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.RetryMax > 0 {
		sc.Producer.Retry.Max = cfg.RetryMax
	}
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
	}
	sc.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

func NewKafkaPublisherWithProducer(p sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = "booking-submissions"
	}
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishSubmission(ctx context.Context, ev SubmissionEvent) error {
	const op = "events.KafkaPublisher.PublishSubmission"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.SessionID.String()),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.Type)},
			{Key: []byte("submission_id"), Value: []byte(ev.SubmissionID.String())},
		},
		Timestamp: ev.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.logger.Debug("submission event published",
		"type", ev.Type,
		"submission_id", ev.SubmissionID,
		"partition", partition,
		"offset", offset,
	)

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSubmission(context.Context, SubmissionEvent) error { return nil }
func (Nop) Close() error                                             { return nil }
