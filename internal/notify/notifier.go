package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Notifier publishes events without blocking the caller. Delivery is best effort.
type Notifier struct {
	broker Broker
	pool   *WorkerPool
}

func NewNotifier(broker Broker, pool *WorkerPool) *Notifier {
	return &Notifier{broker: broker, pool: pool}
}

func (n *Notifier) Notify(userID int, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("can't encode realtime event", zap.Error(err))
		return
	}

	queued := n.pool.TryAddTask(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := n.broker.Publish(ctx, userID, payload); err != nil {
			metrics.RealtimeDropped.Inc()
			zap.L().Warn("can't publish realtime event", zap.Int("user_id", userID), zap.Error(err))
		}
		return nil
	})
	if !queued {
		metrics.RealtimeDropped.Inc()
		zap.L().Warn("realtime queue is full, event dropped", zap.Int("user_id", userID), zap.String("type", event.Type))
	}
}
