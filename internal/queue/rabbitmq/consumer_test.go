package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/queue"
)

// mockAcknowledger records the acknowledgement decision taken for a delivery.
type mockAcknowledger struct {
	acked    bool
	rejected bool
	requeue  bool
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	m.acked = true
	return nil
}

func (m *mockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	m.rejected = true
	m.requeue = requeue
	return nil
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	m.rejected = true
	m.requeue = requeue
	return nil
}

func newTestConsumer() *Consumer {
	client := NewClient(Config{Queue: "email-queue"}, zap.NewNop())
	return NewConsumer(client, zap.NewNop())
}

func deliveryWith(t *testing.T, msg *queue.Message, redelivered bool) (*amqp.Delivery, *mockAcknowledger) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	ack := &mockAcknowledger{}
	return &amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
		Redelivered:  redelivered,
	}, ack
}

func TestHandleDelivery_AckOnSuccess(t *testing.T) {
	c := newTestConsumer()
	d, ack := deliveryWith(t, &queue.Message{DeliveryLogID: "log-1"}, false)

	var handled *queue.Message
	c.handleDelivery(context.Background(), d, func(ctx context.Context, msg *queue.Message) error {
		handled = msg
		return nil
	})

	require.NotNil(t, handled)
	assert.Equal(t, "log-1", handled.DeliveryLogID)
	assert.True(t, ack.acked)
	assert.False(t, ack.rejected)
}

func TestHandleDelivery_UndecodableBodyDeadLettered(t *testing.T) {
	c := newTestConsumer()
	ack := &mockAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}

	called := false
	c.handleDelivery(context.Background(), d, func(ctx context.Context, msg *queue.Message) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestHandleDelivery_UnprocessableDeadLettered(t *testing.T) {
	c := newTestConsumer()
	d, ack := deliveryWith(t, &queue.Message{DeliveryLogID: "log-1"}, false)

	c.handleDelivery(context.Background(), d, func(ctx context.Context, msg *queue.Message) error {
		return queue.ErrUnprocessable
	})

	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestHandleDelivery_ErrorRequeuesOnce(t *testing.T) {
	c := newTestConsumer()
	handlerErr := errors.New("db unavailable")

	// First delivery: requeue for one more try.
	d, ack := deliveryWith(t, &queue.Message{DeliveryLogID: "log-1"}, false)
	c.handleDelivery(context.Background(), d, func(ctx context.Context, msg *queue.Message) error {
		return handlerErr
	})
	assert.True(t, ack.rejected)
	assert.True(t, ack.requeue)

	// Redelivered already: dead-letter instead of bouncing forever.
	d, ack = deliveryWith(t, &queue.Message{DeliveryLogID: "log-1"}, true)
	c.handleDelivery(context.Background(), d, func(ctx context.Context, msg *queue.Message) error {
		return handlerErr
	})
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}
