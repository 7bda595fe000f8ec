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

// Handler processes one payload. Its error decides the settlement, see Settle.
type Handler func(ctx context.Context, p Payload) error

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer runs a fixed number of consumer slots against one queue. Each slot
// owns its channel and takes one delivery at a time.
type Consumer struct {
	url         string
	queue       string
	concurrency int
	retryDelay  time.Duration
	logger      zerolog.Logger
	dial        func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewConsumer(url, queueName string, concurrency int, logger zerolog.Logger) *Consumer {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		url:         url,
		queue:       queueName,
		concurrency: concurrency,
		retryDelay:  5 * time.Second,
		logger:      logger.With().Str("component", "consumer").Str("queue", queueName).Logger(),
		dial:        amqp.Dial,
	}
}

// Run blocks until ctx is cancelled and every slot has finished its
// in-flight delivery.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 1; i <= c.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c.runSlot(ctx, slot, h)
		}(i)
	}
	<-ctx.Done()
	c.logger.Info().Msg("consumer: shutting down, waiting for in-flight jobs")
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func (c *Consumer) runSlot(ctx context.Context, slot int, h Handler) {
	logger := c.logger.With().Int("slot", slot).Logger()
	for ctx.Err() == nil {
		ch, deliveries, err := c.subscribe(slot)
		if err != nil {
			logger.Error().Err(err).Dur("retry_in", c.retryDelay).Msg("consumer: subscribe failed")
			if !sleepCtx(ctx, c.retryDelay) {
				return
			}
			continue
		}
		logger.Info().Msg("consumer: waiting for jobs")
		c.drain(ctx, logger, deliveries, h)
		_ = ch.Close()
	}
}

func (c *Consumer) subscribe(slot int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := Declare(ch, c.queue); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	tag := fmt.Sprintf("animator-worker-%d", slot)
	deliveries, err := ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}
	return ch, deliveries, nil
}

// connection returns the shared connection, redialing if the broker dropped it.
func (c *Consumer) connection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, nil
	}
	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Consumer) drain(ctx context.Context, logger zerolog.Logger, deliveries <-chan amqp.Delivery, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn().Msg("consumer: delivery channel closed, resubscribing")
				return
			}
			c.handle(ctx, logger, d, d.Body, h)
		}
	}
}

// handle runs h on a context that survives shutdown so an in-flight job is
// finished rather than abandoned half way.
func (c *Consumer) handle(ctx context.Context, logger zerolog.Logger, ack acknowledger, body []byte, h Handler) Settlement {
	payload, err := Decode(body)
	if err != nil {
		logger.Error().Err(err).Msg("consumer: dropping malformed payload")
		settle(logger, ack, SettleDeadLetter)
		return SettleDeadLetter
	}

	logger = logger.With().Str("job_id", payload.JobID).Logger()
	started := time.Now()
	err = safeCall(context.WithoutCancel(ctx), h, payload)
	s := Settle(err)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.Str("settlement", s.String()).Dur("duration", time.Since(started)).Msg("consumer: delivery handled")
	settle(logger, ack, s)
	return s
}

func safeCall(ctx context.Context, h Handler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Drop(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, p)
}

func settle(logger zerolog.Logger, ack acknowledger, s Settlement) {
	var err error
	switch s {
	case SettleAck:
		err = ack.Ack(false)
	case SettleRequeue:
		err = ack.Nack(false, true)
	default:
		err = ack.Nack(false, false)
	}
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		logger.Error().Err(err).Str("settlement", s.String()).Msg("consumer: settle failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
