// Package kafka 提供了分析事件的 Kafka 发布功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dreamcatcher-llm-go/internal/config"
	"dreamcatcher-llm-go/pkg/events"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Producer 将分析事件写入 Kafka 主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。Brokers 以逗号分隔。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		// 异步写入，请求路径不等待批次发送，失败在回调中记录
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warnw("Kafka 事件发送失败", "topic", cfg.Topic, "count", len(messages), "error", err)
			}
		},
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &Producer{writer: w}
}

// Publish 把一个分析事件放入发送队列，按事件类型作为消息 key。
func (p *Producer) Publish(ctx context.Context, event events.AnalysisEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind),
		Value: payload,
	})
}

// Close 刷新并关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}
