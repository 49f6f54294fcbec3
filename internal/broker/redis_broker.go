package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const NotificationChannel = "market:notifications"

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisNotificationBroker implements NotificationBroker with Redis pub/sub.
type RedisNotificationBroker struct {
	client *redis.Client
}

func NewRedisNotificationBroker(client *redis.Client) *RedisNotificationBroker {
	return &RedisNotificationBroker{client: client}
}

func (b *RedisNotificationBroker) Publish(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, NotificationChannel, data).Err()
}

func (b *RedisNotificationBroker) Subscribe(ctx context.Context) (<-chan Notification, error) {
	pubsub := b.client.Subscribe(ctx, NotificationChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan Notification, 100)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					logger.Log.Warn("Dropping malformed notification", zap.Error(err))
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisNotificationBroker) Close() error {
	return nil
}
