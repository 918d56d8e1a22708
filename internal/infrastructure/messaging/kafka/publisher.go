// Package kafka publishes run-completion events so downstream consumers
// (catalogs, notification bots) learn about finished dossiers without
// polling the output bucket.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// ErrPublisherClosed is returned by Publish calls after Close.
var ErrPublisherClosed = errors.New(errors.ErrCodeInternal, "publisher closed")

// RunEvent describes one completed dossier run.
type RunEvent struct {
	RunID       string    `json:"run_id"`
	Shape       string    `json:"shape"`
	Subject     string    `json:"subject"`
	Rows        int       `json:"rows"`
	OutputPath  string    `json:"output_path"`
	ObjectKey   string    `json:"object_key,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes run events to a single topic.
type Publisher struct {
	writer writerInterface
	topic  string
	logger logging.Logger
	closed atomic.Bool
}

// NewPublisher builds a Publisher from messaging config.
func NewPublisher(cfg config.KafkaConfig, log logging.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "topic is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return &Publisher{writer: writer, topic: cfg.Topic, logger: log.Named("kafka")}, nil
}

func newPublisherWithWriter(w writerInterface, topic string, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Publisher{writer: w, topic: topic, logger: log.Named("kafka")}
}

// PublishRunCompleted sends one run event, assigning a run id and completion
// time when the caller left them empty.  The shape is used as the message key
// so events for one shape stay ordered.
func (p *Publisher) PublishRunCompleted(ctx context.Context, event RunEvent) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if event.Shape == "" {
		return errors.New(errors.ErrCodeValidation, "event shape is required")
	}
	if event.RunID == "" {
		event.RunID = uuid.NewString()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run event")
	}

	msg := kafka.Message{
		Key:   []byte(event.Shape),
		Value: payload,
		Time:  event.CompletedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish run event")
	}

	p.logger.Info("published run event",
		logging.String("topic", p.topic),
		logging.String("run_id", event.RunID),
		logging.String("shape", event.Shape),
		logging.Int("rows", event.Rows),
	)
	return nil
}

// Close flushes and closes the underlying writer.  Safe to call twice.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
