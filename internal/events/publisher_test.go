package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaProducerWithWriter(w, zap.NewNop())

	err := p.Publish(context.Background(), ShipmentEvent{
		Type:           TypeShipmentSent,
		Shop:           "demo.myshopify.com",
		ShopifyOrderID: "42",
		ShipmentID:     "TEMP-1042",
		IsTemporaryID:  true,
		Status:         "new",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "demo.myshopify.com/42", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, TypeShipmentSent, string(msg.Headers[0].Value))

	var decoded ShipmentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "TEMP-1042", decoded.ShipmentID)
	assert.True(t, decoded.IsTemporaryID)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestKafkaProducer_PublishError(t *testing.T) {
	p := NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, zap.NewNop())
	err := p.Publish(context.Background(), ShipmentEvent{Type: TypeShipmentFailed})
	assert.ErrorContains(t, err, "broker down")
}
