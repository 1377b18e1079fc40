package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/queue"
)

// Publisher writes messages to the durable exchange with persistent delivery
// mode. Publish returns once the broker accepts the publish; a connectivity
// error after one reconnect attempt propagates to the caller.
type Publisher struct {
	client *Client
	logger *zap.Logger
	mu     sync.Mutex
}

func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.Named("queue.publisher"),
	}
}

func (p *Publisher) Publish(ctx context.Context, msg *queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode queue message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err = p.publish(publishing)
	if err == nil {
		p.logger.Debug("message_published",
			zap.String("delivery_log_id", msg.DeliveryLogID),
			zap.Int("attempt_count", msg.AttemptCount),
		)
		return nil
	}

	// One redial covers a broker restart between publishes. Anything past
	// that is the caller's call.
	p.client.reset()
	if err = p.publish(publishing); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("message_published",
		zap.String("delivery_log_id", msg.DeliveryLogID),
		zap.Int("attempt_count", msg.AttemptCount),
	)
	return nil
}

func (p *Publisher) publish(publishing amqp.Publishing) error {
	ch, err := p.client.publishChannel()
	if err != nil {
		return err
	}
	return ch.Publish(p.client.config.Exchange, p.client.config.RoutingKey, false, false, publishing)
}
