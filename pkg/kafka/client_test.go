package kafka

import (
	"errors"
	"testing"

	"dreamcatcher-llm-go/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_WritesAsynchronously(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: "127.0.0.1:9092,127.0.0.1:9093", Topic: "analysis-events"})

	assert.True(t, p.writer.Async)
	assert.Equal(t, "analysis-events", p.writer.Topic)
	require.NotNil(t, p.writer.Completion)
	assert.NotPanics(t, func() {
		p.writer.Completion([]kafka.Message{{Value: []byte("{}")}}, errors.New("broker unavailable"))
	})
}
