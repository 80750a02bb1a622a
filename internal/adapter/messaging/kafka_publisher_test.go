package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

func TestPublishStockAlert(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	defer producer.Close()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "stock-alerts" {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "p1" {
			t.Errorf("unexpected key %s", key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "stock.low_stock" {
			t.Errorf("unexpected headers %+v", msg.Headers)
		}

		b, _ := msg.Value.Encode()
		var alert domain.StockAlert
		if err := json.Unmarshal(b, &alert); err != nil {
			return err
		}
		if alert.TotalRemaining != 22 || alert.LowSizes != 1 {
			t.Errorf("unexpected alert %+v", alert)
		}
		return nil
	})

	pub := NewKafkaPublisher(producer, "stock-alerts")
	err := pub.PublishStockAlert(context.Background(), domain.StockAlert{
		ProductID:      "p1",
		Name:           "Tee",
		State:          domain.StockStateLow,
		TotalRemaining: 22,
		LowSizes:       1,
		At:             time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublishStockAlert_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	defer producer.Close()

	boom := errors.New("leader not available")
	producer.ExpectSendMessageAndFail(boom)

	pub := NewKafkaPublisher(producer, "stock-alerts")
	err := pub.PublishStockAlert(context.Background(), domain.StockAlert{ProductID: "p1", State: domain.StockStateSoldOut})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped send error, got: %v", err)
	}
}

func TestPublishStockAlert_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := NewKafkaPublisher(producer, "stock-alerts")
	if err := pub.PublishStockAlert(ctx, domain.StockAlert{ProductID: "p1"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
