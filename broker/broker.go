// Package broker owns the RabbitMQ side of the pipeline: connecting with
// backoff, declaring topology and running the consume loop.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"estate_ingest/config"
)

// Topology shared with the message producers.
const (
	ExchangeName = "property_exchange"
	ExchangeType = "topic"
	QueueName    = "property_scrape_queue"
	RoutingKey   = "property.scrape"
)

// A scrape run can hold its message for many minutes; the long heartbeat
// keeps the broker from cutting the connection mid-run.
const heartbeatInterval = 600 * time.Second

const backoffBase = time.Second

// Handler decides the fate of one delivery: nil acks it, an error rejects
// it without requeue.
type Handler func(ctx context.Context, body []byte) error

// connection and amqpChannel mirror the slice of the amqp client the
// connector touches, so tests can stand in for a live broker.
type connection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type liveConnection struct {
	conn *amqp.Connection
}

func (c liveConnection) Channel() (amqpChannel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c liveConnection) Close() error {
	return c.conn.Close()
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: heartbeatInterval})
	if err != nil {
		return nil, err
	}
	return liveConnection{conn: conn}, nil
}

// Connector manages one broker connection and its consume channel.
type Connector struct {
	url         string
	maxAttempts int

	dial  func(url string) (connection, error)
	sleep func(time.Duration)

	conn connection
	ch   amqpChannel
}

// NewConnector creates a new Connector from the broker settings.
func NewConnector(cfg config.RabbitConfig) *Connector {
	return &Connector{
		url:         cfg.URL(),
		maxAttempts: cfg.MaxRetries,
		dial:        dialAMQP,
		sleep:       time.Sleep,
	}
}

// Connect dials the broker, backing off exponentially between attempts,
// then declares the exchange, queue and binding. Prefetch is 1 so this
// worker holds a single message at a time.
func (c *Connector) Connect() error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		conn, err := c.dial(c.url)
		if err == nil {
			c.conn = conn
			return c.declareTopology()
		}
		lastErr = err
		if attempt == c.maxAttempts {
			log.Printf("Warning: broker connection attempt %d/%d failed: %v", attempt, c.maxAttempts, err)
			break
		}
		wait := backoffBase << attempt
		log.Printf("Warning: broker connection attempt %d/%d failed: %v, retrying in %s", attempt, c.maxAttempts, err, wait)
		c.sleep(wait)
	}
	return fmt.Errorf("connect to broker after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Connector) declareTopology() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	c.ch = ch
	return nil
}

// Consume delivers message bodies to handler until ctx is cancelled or the
// delivery channel closes. A closed channel means the connection was lost
// and returns an error so the caller can decide what to do.
func (c *Connector) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	log.Printf("Waiting for messages on %s", QueueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				log.Printf("Rejecting message: %v", err)
				if err := d.Nack(false, false); err != nil {
					log.Printf("Warning: nack failed: %v", err)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				log.Printf("Warning: ack failed: %v", err)
			}
		}
	}
}

// Close shuts down the channel and connection.
func (c *Connector) Close() {
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			log.Printf("Warning: failed to close channel: %v", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Printf("Warning: failed to close connection: %v", err)
		}
	}
}
