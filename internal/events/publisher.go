package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes message events keyed by conversation id, so one
// conversation always lands on one partition. The writer is async:
// delivery failures surface in the completion callback only.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Metrics, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{metrics: m, log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.MessageEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.PublishFailures.Add(float64(len(msgs)))
	}
	for _, m := range msgs {
		p.log.Error("kafka delivery failed", zap.ByteString("key", m.Key), zap.Error(err))
	}
}

// Close flushes pending async writes.
func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher stands in for Kafka when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev domain.MessageEvent) error {
	p.log.Debug("message event",
		zap.String("conversation_id", ev.ConversationID),
		zap.String("recipient_id", ev.RecipientID),
		zap.String("sender_id", ev.SenderID),
		zap.String("message_id", ev.MessageID))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
