// Package notify delivers per-user realtime events to connected websocket clients.
package notify

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker fans out payloads published for a user to every subscription of that user.
type Broker interface {
	Publish(ctx context.Context, userID int, payload []byte) error
	Subscribe(ctx context.Context, userID int) (*Subscription, error)
}

// Subscription receives payloads on C until Close is called or the broker drops it.
type Subscription struct {
	C     <-chan []byte
	close func()
	once  sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(s.close)
}

const subscriptionBuffer = 16

func channel(userID int) string {
	return "wallet:" + strconv.Itoa(userID)
}

// RedisBroker uses Redis pub/sub, so events reach clients connected to any instance.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, userID int, payload []byte) error {
	return b.client.Publish(ctx, channel(userID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID int) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan []byte, subscriptionBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					zap.L().Warn("realtime subscriber is slow, event dropped", zap.Int("user_id", userID))
				}
			}
		}
	}()

	return &Subscription{
		C: out,
		close: func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				zap.L().Error("can't close redis subscription", zap.Error(err))
			}
		},
	}, nil
}

// LocalBroker keeps subscriptions in memory. Used when no Redis address is configured.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[int]map[chan []byte]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[int]map[chan []byte]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, userID int, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[userID] {
		select {
		case ch <- payload:
		default:
			zap.L().Warn("realtime subscriber is slow, event dropped", zap.Int("user_id", userID))
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, userID int) (*Subscription, error) {
	ch := make(chan []byte, subscriptionBuffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan []byte]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		},
	}, nil
}
