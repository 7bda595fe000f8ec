package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher hands admitted jobs to the work queue.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
}

const defaultConfirmTimeout = 5 * time.Second

// RabbitPublisher publishes persistent messages on a confirm-mode channel and
// waits for the broker's ack before returning.
type RabbitPublisher struct {
	conn           *amqp.Connection
	queue          string
	confirmTimeout time.Duration
	logger         zerolog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitPublisher(conn *amqp.Connection, queueName string, logger zerolog.Logger) (*RabbitPublisher, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	p := &RabbitPublisher{
		conn:           conn,
		queue:          queueName,
		confirmTimeout: defaultConfirmTimeout,
		logger:         logger.With().Str("component", "publisher").Str("queue", queueName).Logger(),
	}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns the open channel, reopening it after a channel-level error.
// Callers hold p.mu, except the constructor.
func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		return nil, errors.New("rabbitmq connection is closed")
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := Declare(ch, p.queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, payload Payload) error {
	body, err := Encode(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    payload.JobID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", payload.JobID, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm job %s: %w", payload.JobID, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected job %s", payload.JobID)
	}
	p.logger.Debug().Str("job_id", payload.JobID).Msg("queue: job published")
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}

var _ Publisher = (*RabbitPublisher)(nil)
