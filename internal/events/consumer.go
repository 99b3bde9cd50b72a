package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const handleTimeout = 10 * time.Second

type Handler interface {
	Handle(ctx context.Context, e notify.Event) error
}

// Subscription is the part of *redis.PubSub the consumer reads from.
type Subscription interface {
	Channel() <-chan *redis.Message
	Close() error
}

var _ Subscription = (*redis.PubSub)(nil)

type Consumer struct {
	log     *logrus.Logger
	sub     Subscription
	handler Handler
	stats   stats.StatsProvider
}

// Subscribe subscribes to channel and waits for the confirmation.
func Subscribe(client *redis.Client, channel string) (*redis.PubSub, error) {
	sub := client.Subscribe(channel)
	if _, err := sub.Receive(); err != nil {
		sub.Close()
		return nil, errors.Wrap(err, "subscribe "+channel)
	}
	return sub, nil
}

func NewConsumer(logger *logrus.Logger, sub Subscription, h Handler, su stats.StatsProvider) *Consumer {
	su.RegisterMetric(stats.EventsConsumed)

	return &Consumer{
		log:     logger,
		sub:     sub,
		handler: h,
		stats:   su,
	}
}

// Run handles events until ctx is canceled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) {
	defer c.sub.Close()

	msgs := c.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping event consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("event subscription closed")
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *redis.Message) {
	logger := c.log.WithField("channel", msg.Channel)

	var e notify.Event
	if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
		logger.WithError(err).Warn("dropping malformed event")
		return
	}
	if e.Type == "" {
		logger.Warn("dropping event without type")
		return
	}
	logger = logger.WithField("event", e.Type)

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if err := c.handler.Handle(hctx, e); err != nil {
		if errors.Is(err, notify.ErrUnknownEvent) || errors.Is(err, notify.ErrInvalidEvent) {
			logger.WithError(err).Warn("dropping event")
			return
		}
		logger.WithError(err).Error("handle event")
		return
	}

	c.stats.Incr(stats.EventsConsumed)
	logger.Debug("event handled")
}
