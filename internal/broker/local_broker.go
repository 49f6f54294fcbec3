package broker

import (
	"context"
	"sync"
	"time"

	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

// LocalNotificationBroker fans notifications out inside one process. It is
// used when Redis is unavailable, so only admins connected to this instance
// see the events.
type LocalNotificationBroker struct {
	mu     sync.Mutex
	subs   map[chan Notification]struct{}
	closed bool
}

func NewLocalNotificationBroker() *LocalNotificationBroker {
	return &LocalNotificationBroker{subs: make(map[chan Notification]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *LocalNotificationBroker) Publish(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
			logger.Log.Warn("Dropping notification for slow subscriber", zap.String("type", string(n.Type)))
		}
	}
	return nil
}

func (b *LocalNotificationBroker) Subscribe(ctx context.Context) (<-chan Notification, error) {
	ch := make(chan Notification, 100)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()
	return ch, nil
}

func (b *LocalNotificationBroker) unsubscribe(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Close ends every subscription.
func (b *LocalNotificationBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
