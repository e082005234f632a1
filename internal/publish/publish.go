// Package publish sends canonical measurements to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// DefaultTopic is used when none is configured.
const DefaultTopic = "bodymap.measurements"

// Header keys attached to every message.
const (
	HeaderRunID       = "run_id"
	HeaderSourceTypes = "source_types"
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes measurements as JSON messages keyed by record id.
type Publisher struct {
	writer    MessageWriter
	topic     string
	batchSize int
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBatchSize caps the number of messages per write call.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewPublisher creates a publisher over an existing writer.
func NewPublisher(w MessageWriter, topic string, opts ...Option) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Publisher{writer: w, topic: topic, batchSize: 500}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKafkaPublisher creates a publisher writing to brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.NewConfigError("kafka", "at least one broker is required", nil)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewPublisher(w, topic, opts...), nil
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish writes one message per measurement and returns how many were
// sent. Messages of the same record land on the same partition.
func (p *Publisher) Publish(ctx context.Context, runID string, ms []measurements.Measurement) (int, error) {
	logger := logging.FromContext(ctx)
	sent := 0
	for start := 0; start < len(ms); start += p.batchSize {
		end := min(start+p.batchSize, len(ms))
		msgs := make([]kafka.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := Message(runID, &ms[i])
			if err != nil {
				return sent, err
			}
			msgs = append(msgs, msg)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return sent, fmt.Errorf("publishing to %s: %w", p.topic, err)
		}
		sent += len(msgs)
	}
	logger.Info().Str("topic", p.topic).Int("messages", sent).Msg("Published measurements")
	return sent, nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Message encodes m as a Kafka message.
func Message(runID string, m *measurements.Measurement) (kafka.Message, error) {
	if m.RecordID == "" {
		return kafka.Message{}, errors.NewValidationError("record_id", m.RecordID, "record id is required")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(m.RecordID),
		Value: body,
		Time:  m.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderRunID, Value: []byte(runID)},
			{Key: HeaderSourceTypes, Value: []byte(measurements.JoinKinds(m.SourceKinds, ","))},
		},
	}, nil
}
