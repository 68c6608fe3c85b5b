package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tesouraria/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if _, err := client.ensureChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

// ensureChannel returns the open channel, dialing again when the previous
// connection was lost.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return channel, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	// Declare exchange
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = ch.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishRecalculate publishes a recalculation request for an owner
func (c *Client) PublishRecalculate(ctx context.Context, ownerID, reason string) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish recalculate: %w", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := NewRecalculateMessage(ownerID, reason)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.resetConnection()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.InfoContext(ctx, "Published recalculate message",
		log.FieldOwnerID, ownerID,
		log.FieldReason, reason,
		log.FieldExchange, c.exchangeName,
		log.FieldQueue, c.queueName)

	return nil
}

// Handler processes one recalculation request.
type Handler func(ctx context.Context, msg *RecalculateMessage) error

// ConsumeRecalculate consumes recalculation requests until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) ConsumeRecalculate(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		processed, err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", log.FieldReason, ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}
		if processed > 0 {
			attempt = 0
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting",
			log.FieldError, err,
			log.FieldAttempt, attempt,
			log.FieldBackoff, wait.String())
		c.resetConnection()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, handler Handler) (int, error) {
	ch, err := c.ensureChannel()
	if err != nil {
		return 0, err
	}
	// one unacknowledged message at a time, handlers run sequentially
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return 0, fmt.Errorf("set prefetch: %w", err)
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return 0, fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming recalculate messages", log.FieldQueue, c.queueName)

	processed := 0
	for {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return processed, amqp091.ErrClosed
			}
			handleDelivery(ctx, delivery.Body, delivery.Redelivered, delivery, handler)
			processed++
		}
	}
}

const prefetchCount = 1

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Delivery outcomes
const (
	outcomeAcked    = "acked"
	outcomeRejected = "rejected"
	outcomeRequeued = "requeued"
	outcomeDropped  = "dropped"
)

// handleDelivery acks processed messages and drops undecodable ones. A
// failed message is requeued once; when its redelivery fails too it is
// dropped, and the owner is brought back in line by its next change or the
// worker's startup sweep.
func handleDelivery(ctx context.Context, body []byte, redelivered bool, ack acknowledger, handler Handler) string {
	msg, err := RecalculateMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		settle(ctx, "reject", ack.Nack(false, false), "")
		return outcomeRejected
	}

	slog.InfoContext(ctx, "Processing recalculate message",
		log.FieldOwnerID, msg.OwnerID,
		log.FieldReason, msg.Reason,
		log.FieldRedelivered, redelivered)

	if err := handler(ctx, msg); err != nil {
		if redelivered {
			slog.ErrorContext(ctx, "Dropping message that failed again after redelivery",
				log.FieldError, err,
				log.FieldOwnerID, msg.OwnerID,
				log.FieldReason, msg.Reason)
			settle(ctx, "drop", ack.Nack(false, false), msg.OwnerID)
			return outcomeDropped
		}
		slog.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldOwnerID, msg.OwnerID,
			log.FieldReason, msg.Reason)
		settle(ctx, "requeue", ack.Nack(false, true), msg.OwnerID)
		return outcomeRequeued
	}

	settle(ctx, "ack", ack.Ack(false), msg.OwnerID)
	slog.InfoContext(ctx, "Successfully processed recalculate message",
		log.FieldOwnerID, msg.OwnerID)
	return outcomeAcked
}

// settle logs a failed ack or nack. The broker redelivers the message once
// the channel closes, so there is nothing else to do.
func settle(ctx context.Context, op string, err error, ownerID string) {
	if err != nil {
		slog.WarnContext(ctx, "Failed to "+op+" message",
			log.FieldError, err,
			log.FieldOwnerID, ownerID)
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.failMu.Lock()
		last := c.lastFailure
		c.failMu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
