// Package events publishes issue lifecycle events to RabbitMQ for
// downstream consumers such as notification or analytics workers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/issues"
	"github.com/pih12/Pravah/models"
)

// Event is the message body published for every committed mutation.
type Event struct {
	Type    string             `json:"type"`
	ID      string             `json:"id"`
	IssueID string             `json:"issueId,omitempty"`
	Actor   string             `json:"actor"`
	Status  models.IssueStatus `json:"status,omitempty"`
	At      time.Time          `json:"at"`
}

// RoutingKey is "issue.<op>", e.g. issue.created.
func RoutingKey(op issues.ChangeOp) string {
	return "issue." + string(op)
}

func FromChange(c issues.Change) Event {
	return Event{
		Type:    RoutingKey(c.Op),
		ID:      c.ID,
		IssueID: c.IssueID,
		Actor:   c.Actor,
		Status:  c.Status,
		At:      c.At,
	}
}

// Publisher sends events to a topic exchange and reconnects once when the
// broker connection has dropped.
type Publisher struct {
	mu       sync.Mutex
	amqpURL  string
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewPublisher(amqpURL, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{amqpURL: amqpURL, exchange: exchange, logger: logger}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// NotifyChanged publishes the change. Failures are logged; the mutation has
// already been committed.
func (p *Publisher) NotifyChanged(ctx context.Context, change issues.Change) {
	if err := p.Publish(ctx, FromChange(change)); err != nil {
		p.logger.Warn("issue event not published",
			zap.String("op", string(change.Op)), zap.String("id", change.ID), zap.Error(err))
	}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.channel == nil {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	err = p.channel.Publish(p.exchange, ev.Type, false, false, publishing)
	if err != nil && isConnClosedErr(err) {
		p.closeLocked()
		if connErr := p.connectLocked(); connErr != nil {
			return fmt.Errorf("publish event: %w (reconnect failed: %v)", err, connErr)
		}
		err = p.channel.Publish(p.exchange, ev.Type, false, false, publishing)
	}
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return ctx.Err()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.channel != nil {
		err = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
		p.conn = nil
	}
	return err
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.amqpURL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.conn = conn
	p.channel = ch
	return nil
}

func (p *Publisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func isConnClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "channel/connection is not open")
}
