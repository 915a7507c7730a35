package rabbitmq

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
)

// IngestJob asks the worker to load course documents from a path on its
// filesystem. Path may be a single file or a folder.
type IngestJob struct {
	Path          string `json:"path"`
	ClearExisting bool   `json:"clear_existing"`
}

type Client struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewClient connects and declares the work queue together with its dead
// letter exchange and queue, so failed ingest jobs are retained for
// inspection instead of being dropped.
func NewClient(url, queueName string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	dlxName := queueName + ".dlx"
	err = ch.ExchangeDeclare(
		dlxName,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dlx: %w", err)
	}

	dlqName := queueName + ".dlq"
	_, err = ch.QueueDeclare(
		dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dlq: %w", err)
	}

	err = ch.QueueBind(
		dlqName,
		queueName, // routing key: the work queue name
		dlxName,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind dlq: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlxName,
		"x-dead-letter-routing-key": queueName,
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &Client{
		conn:  conn,
		ch:    ch,
		queue: queueName,
	}, nil
}

func (c *Client) Publish(ctx context.Context, body []byte) error {
	return c.ch.PublishWithContext(ctx,
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

func (c *Client) PublishIngestJob(ctx context.Context, job IngestJob) error {
	body, err := sonic.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode ingest job: %w", err)
	}
	return c.Publish(ctx, body)
}

func DecodeIngestJob(body []byte) (IngestJob, error) {
	var job IngestJob
	if err := sonic.Unmarshal(body, &job); err != nil {
		return IngestJob{}, fmt.Errorf("failed to decode ingest job: %w", err)
	}
	return job, nil
}

// Consume sets per-channel QoS and returns a delivery stream. Consumers
// ack manually; nacked deliveries route to the DLQ.
func (c *Client) Consume(prefetchCount int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(
		prefetchCount,
		0,     // prefetch size
		false, // per-channel, not per-connection
	); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return c.ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack off, manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
}

func (c *Client) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
