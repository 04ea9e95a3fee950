package docstore

import (
	"context"
	"fmt"

	"github.com/acaifrutal/storefront-backend/pkg/logger"
	pkgredis "github.com/acaifrutal/storefront-backend/pkg/redis"
)

// RedisNotifier broadcasts changed document paths on a redis channel so every API
// instance can refresh its live subscriptions.
type RedisNotifier struct {
	client  *pkgredis.Client
	channel string
	logg    *logger.Logger
}

func NewRedisNotifier(client *pkgredis.Client, channel string, logg *logger.Logger) (*RedisNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisNotifier{client: client, channel: channel, logg: logg}, nil
}

func (n *RedisNotifier) Publish(ctx context.Context, path string) error {
	return n.client.Publish(ctx, n.channel, path)
}

// Listen forwards every published path to onChange until ctx is cancelled.
func (n *RedisNotifier) Listen(ctx context.Context, onChange func(path string)) error {
	sub, err := n.client.Subscribe(ctx, n.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	n.logg.Info(n.logg.WithField(ctx, "channel", n.channel), "docstore.listen_started")
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("docstore change channel %s closed", n.channel)
			}
			onChange(msg.Payload)
		}
	}
}
