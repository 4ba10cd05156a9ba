package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Families lists the topic suffixes the hub writes to.
var Families = []string{"user", "proposal", "project", "review", "message", "payment"}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to <prefix>.<family> topics.
type KafkaPublisher struct {
	writer messageWriter
	prefix string
	logger *zap.Logger
}

// NewKafkaPublisher builds a publisher for brokers.
func NewKafkaPublisher(brokers []string, topicPrefix string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, topicPrefix, logger), nil
}

func newKafkaPublisher(writer messageWriter, topicPrefix string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: writer,
		prefix: strings.TrimSuffix(strings.TrimSpace(topicPrefix), "."),
		logger: logger,
	}
}

// Topic returns the topic an event is written to.
func (p *KafkaPublisher) Topic(evt Event) string {
	return TopicName(p.prefix, evt.Family())
}

// TopicName joins prefix and family.
func TopicName(prefix, family string) string {
	if prefix == "" {
		return family
	}
	return prefix + "." + family
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		value, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", evt.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.Topic(evt),
			Key:   []byte(evt.Key),
			Value: value,
			Time:  evt.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	p.logger.Debug("events published", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EnsureTopics creates the hub topics on the cluster controller if missing.
func EnsureTopics(ctx context.Context, brokers []string, topicPrefix string, partitions int) error {
	if len(brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if partitions <= 0 {
		partitions = 1
	}
	var dialer kafka.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}
	controllerConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	prefix := strings.TrimSuffix(strings.TrimSpace(topicPrefix), ".")
	configs := make([]kafka.TopicConfig, 0, len(Families))
	for _, family := range Families {
		configs = append(configs, kafka.TopicConfig{
			Topic:             TopicName(prefix, family),
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("create kafka topics: %w", err)
	}
	return nil
}
