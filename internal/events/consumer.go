package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mind-engage/mindengage-failedq/internal/capture"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
)

// Consumer reads completion events published by the host on a topic
// exchange. Each registered hook name is bound as a routing key.
type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	queueName  string
	dispatcher *Dispatcher
	log        *logger.Logger
	shutdown   chan struct{}
	wg         sync.WaitGroup
	enabled    bool
}

// NewConsumer connects to uri. An empty uri yields a disabled consumer.
func NewConsumer(uri, exchange, queue string, d *Dispatcher, log *logger.Logger) (*Consumer, error) {
	c := &Consumer{
		exchange:   exchange,
		queueName:  queue,
		dispatcher: d,
		log:        log,
		shutdown:   make(chan struct{}),
	}
	if uri == "" {
		log.Warn("AMQP_URL is empty, completion event consumer disabled")
		return c, nil
	}

	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := channel.Qos(10, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	c.conn = conn
	c.channel = channel
	c.enabled = true
	return c, nil
}

func (c *Consumer) Start() error {
	if !c.enabled {
		return nil
	}
	if err := c.channel.ExchangeDeclare(
		c.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, hook := range c.dispatcher.Hooks() {
		if err := c.channel.QueueBind(c.queueName, hook, c.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s with key %s: %w", c.exchange, hook, err)
		}
	}

	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(msgs)
	}()
	c.log.Info("completion event consumer started", "exchange", c.exchange, "queue", c.queueName)
	return nil
}

func (c *Consumer) consume(msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-c.shutdown:
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("completion event channel closed")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := c.handle(ctx, msg.RoutingKey, msg.Body); err != nil {
				c.log.Warn("completion event dropped", "routing_key", msg.RoutingKey, "error", err)
			}
			cancel()
			// Never requeued: a rejected event will not become valid later.
			if err := msg.Ack(false); err != nil {
				c.log.Error("ack completion event", "error", err)
			}
		}
	}
}

// handle decodes one message body; the routing key names the hook unless the
// body carries its own.
func (c *Consumer) handle(ctx context.Context, routingKey string, body []byte) error {
	e, err := capture.ParseEvent(body)
	if err != nil {
		return err
	}
	if e.Hook == "" {
		e.Hook = routingKey
	}
	_, err = c.dispatcher.Dispatch(ctx, e)
	return err
}

func (c *Consumer) Close() error {
	if !c.enabled {
		return nil
	}
	close(c.shutdown)
	c.wg.Wait()
	if err := c.channel.Close(); err != nil {
		c.log.Warn("close RabbitMQ channel", "error", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("error closing RabbitMQ connection: %w", err)
	}
	return nil
}
