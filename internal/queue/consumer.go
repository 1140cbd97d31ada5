package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// errMalformed marks events that can never be delivered.
var errMalformed = errors.New("malformed email event")

// Deliverer performs the actual email delivery for an event.
type Deliverer interface {
	Deliver(ctx context.Context, ev EmailEvent) error
}

// FileDeliverer appends one line per event to a file. It is the default
// sink when no SMTP relay is wired in.
type FileDeliverer struct{ Path string }

func (d FileDeliverer) Deliver(_ context.Context, ev EmailEvent) error {
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(d.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | id=%s | to=%s | token=%s\n",
		ev.CreatedAt.Format(time.RFC3339), ev.Kind, ev.ID, ev.Email, ev.Token)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// Consumer drains the email queue into a Deliverer.
type Consumer struct {
	URL     string
	Queue   string
	Deliver Deliverer
	Log     *zap.Logger
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("email-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("email-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("email-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				requeue := shouldRequeue(err)
				c.Log.Warn("email-consumer: handle message failed",
					zap.String("message_id", d.MessageId), zap.Bool("requeue", requeue), zap.Error(err))
				_ = d.Nack(false, requeue)
				if requeue && !sleep(ctx, time.Second) {
					return ctx.Err()
				}
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev EmailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errMalformed, err)
	}
	switch ev.Kind {
	case KindVerification, KindPasswordReset:
	default:
		return fmt.Errorf("%w: unknown event kind %q", errMalformed, ev.Kind)
	}
	if strings.TrimSpace(ev.Email) == "" || ev.Token == "" {
		return fmt.Errorf("%w: missing email or token", errMalformed)
	}
	if err := c.Deliver.Deliver(ctx, ev); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	c.Log.Info("email delivered", zap.String("id", ev.ID), zap.String("kind", ev.Kind), zap.String("to", ev.Email))
	return nil
}

// shouldRequeue keeps delivery failures on the queue and drops events that
// can never be delivered.
func shouldRequeue(err error) bool {
	return err != nil && !errors.Is(err, errMalformed)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
