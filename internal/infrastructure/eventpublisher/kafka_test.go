package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/domain"
)

func TestKafkaPublisherSendsEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg kafkaMessage
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.ID != "evt-1" || msg.EventType != domain.EventTypeAccountReconciled {
			return errors.New("unexpected envelope")
		}
		if msg.Payload["delta"] != "-5" {
			return errors.New("payload not forwarded")
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "cashledger.events")
	err := pub.Publish(context.Background(), &domain.OutboxEvent{
		ID:            "evt-1",
		EventType:     domain.EventTypeAccountReconciled,
		AggregateType: domain.AggregateTypeAccount,
		AggregateID:   "bk-1",
		Payload:       map[string]any{"delta": "-5"},
		CreatedAt:     time.Now().UTC(),
	})

	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherReportsBrokerFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	pub := NewKafkaPublisherWithProducer(producer, "cashledger.events")
	err := pub.Publish(context.Background(), &domain.OutboxEvent{ID: "evt-1"})

	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisherHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisherWithProducer(producer, "cashledger.events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.Publish(ctx, &domain.OutboxEvent{ID: "evt-1"}), context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "cashledger.events")
	assert.Error(t, err)
}

func TestNewKafkaConfigIsIdempotent(t *testing.T) {
	cfg := NewKafkaConfig()

	assert.True(t, cfg.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.NoError(t, cfg.Validate())
}
