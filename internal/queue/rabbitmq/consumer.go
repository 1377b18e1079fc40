package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mailflow/mailflow/internal/queue"
)

// Consumer delivers queue messages to a handler with manual acknowledgement.
// Delivery is at-least-once: a crash between handler completion and ack makes
// the broker redeliver, so handlers must tolerate duplicates.
type Consumer struct {
	client *Client
	logger *zap.Logger
}

func NewConsumer(client *Client, logger *zap.Logger) *Consumer {
	return &Consumer{
		client: client,
		logger: logger.Named("queue.consumer"),
	}
}

// Consume blocks running the consume loop until the context is cancelled or
// the broker connection dies. In-flight handlers finish and acknowledge
// before Consume returns.
func (c *Consumer) Consume(ctx context.Context, handler queue.Handler) error {
	ch, err := c.client.consumeChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.client.config.PrefetchCount, 0, false); err != nil {
		return err
	}

	tag := consumerTag()
	deliveries, err := ch.Consume(c.client.config.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consumer_started",
		zap.String("queue", c.client.config.Queue),
		zap.Int("workers", c.client.config.WorkerCount),
	)

	eg, egCtx := errgroup.WithContext(context.Background())

	eg.Go(func() error {
		select {
		case <-ctx.Done():
			// Stop new deliveries; the workers drain the channel and ack
			// what they already hold.
			return ch.Cancel(tag, false)
		case <-egCtx.Done():
			return nil
		case connErr := <-ch.NotifyClose(make(chan *amqp.Error)):
			if connErr != nil {
				return connErr
			}
			return nil
		}
	})

	for i := 0; i < c.client.config.WorkerCount; i++ {
		eg.Go(func() error {
			for d := range deliveries {
				c.handleDelivery(ctx, &d, handler)
			}
			return nil
		})
	}

	err = eg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Consumer) handleDelivery(ctx context.Context, d *amqp.Delivery, handler queue.Handler) {
	var msg queue.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// A payload that does not decode will never decode; dead-letter it
		// rather than bouncing it forever.
		c.logger.Error("message_unprocessable",
			zap.Error(err),
			zap.String("message_id", d.MessageId),
		)
		c.reject(d, false)
		return
	}

	err := handler(ctx, &msg)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed",
				zap.Error(ackErr),
				zap.String("delivery_log_id", msg.DeliveryLogID),
			)
		}
	case errors.Is(err, queue.ErrUnprocessable):
		c.reject(d, false)
	default:
		// One broker-level redelivery, then the dead-letter queue. This
		// counter is coarser than, and independent of, the delivery log's
		// own attempt budget.
		c.reject(d, !d.Redelivered)
	}
}

func (c *Consumer) reject(d *amqp.Delivery, requeue bool) {
	if err := d.Reject(requeue); err != nil {
		c.logger.Error("message_reject_failed",
			zap.Error(err),
			zap.String("message_id", d.MessageId),
			zap.Bool("requeue", requeue),
		)
	}
}

func consumerTag() string {
	host, err := os.Hostname()
	if err != nil {
		return "mailflow-worker"
	}
	return "mailflow-" + host
}
