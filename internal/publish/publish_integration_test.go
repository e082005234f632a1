//go:build integration

package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
)

func TestKafkaPublisherIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()
	ctx = logging.WithLogger(ctx, logging.NewNopLogger())

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	topic := "bodymap_measurements_it"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	pub, err := NewKafkaPublisher(brokers, topic)
	require.NoError(t, err)
	at := time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC)
	ms := []measurements.Measurement{{
		RecordID:    "rec-1",
		Timestamp:   at,
		Composition: measurements.Composition{WeightKg: measurements.FromFloat(75.5)},
		SourceKinds: []measurements.SourceKind{measurements.Tabular, measurements.Binary},
	}}
	sent, err := pub.Publish(ctx, "run-it", ms)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.NoError(t, pub.Close())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", string(msg.Key))

	var got measurements.Measurement
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "rec-1", got.RecordID)
	weight, ok := got.WeightKg.Get()
	require.True(t, ok)
	assert.InDelta(t, 75.5, weight, 1e-9)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "run-it", headers[HeaderRunID])
	assert.Equal(t, "csv,fit", headers[HeaderSourceTypes])
}
