package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"firealert/internal/logger"
	"firealert/internal/metrics"
	"firealert/internal/models"
)

// Consumer errors
var (
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrNoBrokers      = errors.New("at least one broker is required")
	ErrNoTopic        = errors.New("topic is required")
)

// MessageReader is the subset of *kafka.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads detection events from Kafka and feeds the alerting workflow
type Consumer struct {
	reader       MessageReader
	envelopeChan chan<- *models.Envelope
	closed       atomic.Bool

	// Metrics
	enqueued  atomic.Uint64
	malformed atomic.Uint64
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	EnvelopeChan chan<- *models.Envelope
}

// NewConsumer creates a consumer backed by a kafka-go group reader
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0, // commit synchronously after enqueue
	})

	return NewConsumerWithReader(reader, cfg.EnvelopeChan), nil
}

// NewConsumerWithReader creates a consumer over an existing reader
func NewConsumerWithReader(reader MessageReader, envelopeChan chan<- *models.Envelope) *Consumer {
	return &Consumer{
		reader:       reader,
		envelopeChan: envelopeChan,
	}
}

// Start consumes until ctx is cancelled. Malformed or invalid messages are
// logged, committed and skipped. Returns nil on cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}

	log := logger.WithComponent("kafka_consumer")
	log.Info().Msg("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info().Msg("consumer stopped")
				return nil
			}
			if c.closed.Load() {
				return nil
			}
			log.Error().Err(err).Msg("fetch failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		envelope, err := decodeMessage(msg)
		if err != nil {
			c.malformed.Add(1)
			status := "malformed"
			if errors.Is(err, errInvalidDetection) {
				status = "invalid"
			}
			metrics.KafkaMessagesTotal.WithLabelValues(status).Inc()
			metrics.DetectionsReceivedTotal.WithLabelValues(models.SourceKafka, "rejected").Inc()
			log.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("skipping detection message")
		} else {
			select {
			case c.envelopeChan <- envelope:
				c.enqueued.Add(1)
				metrics.KafkaMessagesTotal.WithLabelValues("enqueued").Inc()
				metrics.DetectionsReceivedTotal.WithLabelValues(models.SourceKafka, "accepted").Inc()
			case <-ctx.Done():
				// not committed; redelivered on restart
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

var errInvalidDetection = errors.New("invalid detection")

func decodeMessage(msg kafka.Message) (*models.Envelope, error) {
	var det models.Detection
	if err := json.Unmarshal(msg.Value, &det); err != nil {
		return nil, fmt.Errorf("decode detection: %w", err)
	}

	det.Normalize()
	if det.JobID == "" && len(msg.Key) > 0 {
		det.JobID = string(msg.Key)
	}
	if err := det.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidDetection, err)
	}

	id := uuid.NewString()
	for _, h := range msg.Headers {
		if h.Key == "detection_id" && len(h.Value) > 0 {
			id = string(h.Value)
		}
	}

	envelope := models.NewEnvelope(id, &det, models.SourceKafka)
	envelope.BatchID = msg.Topic + "/" + strconv.Itoa(msg.Partition)
	envelope.BatchIndex = int(msg.Offset)
	return envelope, nil
}

// Stop closes the underlying reader
func (c *Consumer) Stop() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.reader.Close()
}

// Stats returns consumer statistics
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Enqueued:  c.enqueued.Load(),
		Malformed: c.malformed.Load(),
	}
}

// ConsumerStats holds consumer metrics
type ConsumerStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Malformed uint64 `json:"malformed"`
}
