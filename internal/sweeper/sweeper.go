// Package sweeper runs periodic maintenance: expired OTP codes and stale deposit requests.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CodeRepo interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Wallet interface {
	ExpireStaleDeposits(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	codes    CodeRepo
	wallet   Wallet
	interval time.Duration
}

func New(codes CodeRepo, wallet Wallet, interval time.Duration) *Sweeper {
	return &Sweeper{codes: codes, wallet: wallet, interval: interval}
}

// Run sweeps once immediately and then every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil {
			zap.L().Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.codes.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			zap.L().Debug("expired verification codes purged", zap.Int64("count", n))
		}
		return nil
	})
	g.Go(func() error {
		_, err := s.wallet.ExpireStaleDeposits(ctx, time.Now())
		return err
	})

	return g.Wait()
}
