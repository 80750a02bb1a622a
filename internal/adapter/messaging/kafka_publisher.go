package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

// KafkaPublisher writes stock alerts keyed by product id, so alerts for the
// same product stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// NewProducerConfig mirrors the acks=all / bounded retry settings used for
// the catalog producers.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "storefront-stock"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// DialKafka connects a synchronous producer to the given brokers.
func DialKafka(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisher(producer, topic), nil
}

func (p *KafkaPublisher) PublishStockAlert(ctx context.Context, alert domain.StockAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(alert.ProductID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte("stock." + string(alert.State))},
		},
		Timestamp: alert.At,
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send alert %s: %w", alert.ProductID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
