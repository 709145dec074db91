package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/issues"
)

const DefaultChannel = "civic:issues:changed"

const (
	minListenBackoff = 500 * time.Millisecond
	maxListenBackoff = 30 * time.Second
)

var errChannelClosed = errors.New("subscription channel closed")

// changeMessage is the pub/sub payload. Origin names the publishing instance
// so it can skip its own writes, which it has already applied locally.
type changeMessage struct {
	Origin string `json:"origin"`
	issues.Change
}

// RedisNotifier fans a mutation out to every instance over Redis pub/sub.
// The writing instance refreshes its own feed on commit; the others refresh
// when the message arrives through Listen.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
	feed    *Feed
	logger  *zap.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, feed *Feed, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: channel, origin: uuid.NewString(), feed: feed, logger: logger}
}

// NotifyChanged refreshes the local feed and publishes change to the other
// instances.
func (n *RedisNotifier) NotifyChanged(ctx context.Context, change issues.Change) {
	n.feed.NotifyChanged(ctx, change)

	payload, err := json.Marshal(changeMessage{Origin: n.origin, Change: change})
	if err != nil {
		n.logger.Error("marshal change", zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("publish change failed, other instances will lag",
			zap.String("channel", n.channel), zap.String("id", change.ID), zap.Error(err))
	}
}

// Run keeps a subscription open until ctx is done, resubscribing with
// exponential backoff whenever Listen fails. Each reconnect refreshes the feed
// once to pick up changes published while the subscription was down.
func (n *RedisNotifier) Run(ctx context.Context) {
	backoff := minListenBackoff
	for {
		err := n.Listen(ctx)
		if ctx.Err() != nil {
			return
		}
		n.logger.Warn("issue change listener stopped, retrying",
			zap.String("channel", n.channel), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxListenBackoff {
			backoff = maxListenBackoff
		}
	}
}

// Listen refreshes the feed for every change other instances publish on the
// channel. It returns nil once ctx is done and an error if the subscription
// cannot be established or is lost.
func (n *RedisNotifier) Listen(ctx context.Context) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	n.logger.Info("listening for issue changes", zap.String("channel", n.channel))
	if _, err := n.feed.Refresh(ctx); err != nil {
		n.logger.Warn("refresh after subscribe failed", zap.Error(err))
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			var m changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				n.logger.Warn("ignoring malformed change", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if m.Origin == n.origin {
				continue
			}
			n.feed.NotifyChanged(ctx, m.Change)
		}
	}
}
