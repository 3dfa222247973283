package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventsExchange = "delixmi.events"

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) EnsureExchange(name string) error {
	return c.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// EnsureNodeQueue declares the per-node realtime queue: auto-delete, so a
// node that goes away takes its subscription with it.
func (c *Client) EnsureNodeQueue(name string) (amqp.Queue, error) {
	return c.ch.QueueDeclare(name, false, true, false, false, nil)
}

func (c *Client) BindQueue(queueName, exchange, routingKey string) error {
	return c.ch.QueueBind(queueName, routingKey, exchange, false, nil)
}

func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
}

type HandlerFunc func(ctx context.Context, body []byte) error

// Consume delivers queue messages to the handler; failures are acked and
// dropped after logging upstream, since realtime fan-out is at-most-once.
func (c *Client) Consume(queue string, handler HandlerFunc) error {
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for msg := range msgs {
		_ = handler(context.Background(), msg.Body)
		_ = msg.Ack(false)
	}

	return amqp.ErrClosed
}
