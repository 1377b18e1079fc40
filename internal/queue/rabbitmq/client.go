package rabbitmq

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const dlxSuffix = "-dlx"

// Config carries broker topology settings.
type Config struct {
	URL           string
	Exchange      string
	Queue         string
	RoutingKey    string
	PrefetchCount int
	WorkerCount   int
}

// Client owns the long-lived broker connection for one process. It is safe
// for concurrent use; publishing serializes on a single channel, consumers
// open their own.
type Client struct {
	config Config
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewClient(config Config, logger *zap.Logger) *Client {
	if config.PrefetchCount <= 0 {
		config.PrefetchCount = 1
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	return &Client{
		config: config,
		logger: logger.Named("rabbitmq"),
	}
}

// connectLocked dials the broker and declares the topology. Callers hold mu.
func (c *Client) connectLocked() error {
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, c.config); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.ch = ch

	c.logger.Info("broker_connected",
		zap.String("exchange", c.config.Exchange),
		zap.String("queue", c.config.Queue),
	)
	return nil
}

// declareTopology sets up the durable exchange, the main queue with its
// dead-letter pair, and the binding. Idempotent on the broker side.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	dlxName := cfg.Queue + dlxSuffix

	if err := ch.ExchangeDeclare(dlxName, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(dlxName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx queue: %w", err)
	}
	if err := ch.QueueBind(dlxName, "", dlxName, false, nil); err != nil {
		return fmt.Errorf("bind dlx queue: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": dlxName}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// publishChannel returns the shared publish channel, connecting on first use.
func (c *Client) publishChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		return c.ch, nil
	}
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c.ch, nil
}

// consumeChannel opens a dedicated channel for a consumer loop.
func (c *Client) consumeChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := declareTopology(ch, c.config); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

// reset drops the cached connection so the next operation redials.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.ch = nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.ch = nil
	return err
}
