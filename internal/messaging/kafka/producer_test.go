package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("test", t.Name()),
	}
	return producer, mockProducer
}

func TestProducer_PublishEvent_Success(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	defer mockProducer.Close()

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var decoded map[string]interface{}
		return json.Unmarshal(value, &decoded)
	})

	event := map[string]string{"sale_id": "sale-1", "status": "approved"}
	if err := producer.PublishEvent(TopicSaleEvents, "sale-1", event); err != nil {
		t.Fatalf("publish event: %v", err)
	}
}

func TestProducer_PublishEvent_SendError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	defer mockProducer.Close()

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	if err := producer.PublishEvent(TopicSaleEvents, "sale-1", map[string]string{"x": "y"}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	defer mockProducer.Close()

	// Каналы не сериализуются в JSON.
	if err := producer.PublishEvent(TopicSaleEvents, "sale-1", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
