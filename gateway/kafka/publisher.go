// Package kafka adapts the agent's publish capability onto a Kafka client.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// HeaderQoS carries the task's delivery-class hint. Kafka has no
// per-message QoS, so the hint travels as a record header for consumers
// that care.
const HeaderQoS = "qos"

// Producer is the slice of kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	client Producer
}

func New(client Producer) *Publisher {
	return &Publisher{client: client}
}

// Publish sends one value synchronously. Agent topics use "/" separators;
// Kafka topic names only allow [a-zA-Z0-9._-], so separators map to ".".
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, qos int) error {
	record := &kgo.Record{Topic: TopicName(topic), Value: payload}
	if qos > 0 {
		record.Headers = []kgo.RecordHeader{{Key: HeaderQoS, Value: []byte(strconv.Itoa(qos))}}
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// TopicName maps an agent topic onto a legal Kafka topic name.
func TopicName(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

// NewClient builds the broker client. keepAlive is the minimum task
// interval; the connection idle timeout doubles it so the busiest task's
// cadence keeps connections warm between runs.
func NewClient(brokers []string, clientID string, keepAlive time.Duration) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
	}
	if keepAlive > 0 {
		opts = append(opts, kgo.ConnIdleTimeout(2*keepAlive))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create broker client: %w", err)
	}
	return client, nil
}
