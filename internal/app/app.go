package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/config"
	"github.com/GlebRadaev/boostmarket/internal/handlers"
	"github.com/GlebRadaev/boostmarket/internal/notify"
	"github.com/GlebRadaev/boostmarket/internal/pg"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
	"github.com/GlebRadaev/boostmarket/internal/repo"
	"github.com/GlebRadaev/boostmarket/internal/service"
	"github.com/GlebRadaev/boostmarket/internal/sweeper"
	"github.com/GlebRadaev/boostmarket/pkg/clients"
	"github.com/GlebRadaev/boostmarket/pkg/logger"
	"github.com/GlebRadaev/boostmarket/pkg/mailer"
)

const (
	notifyWorkers = 4
	notifyQueue   = 256
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg     *config.Config
	api     *handlers.Handlers
	srv     *service.Services
	repo    *repo.Repositories
	sweeper *sweeper.Sweeper

	db     *pgxpool.Pool
	redis  *redis.Client
	broker notify.Broker
	events *notify.WorkerPool

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}
	a.db = pool

	a.broker, a.redis, err = getBroker(ctx, cfg)
	if err != nil {
		zap.L().Error("redis connection failed: ", zap.Error(err))
		return fmt.Errorf("can't connect to redis: %w", err)
	}

	engine, err := pricing.New(pricingConfig(cfg.Pricing))
	if err != nil {
		zap.L().Error("pricing config rejected: ", zap.Error(err))
		return err
	}

	a.cfg = cfg
	a.events = notify.NewWorkerPool(notifyWorkers, notifyQueue)
	a.repo = repo.New(pg.New(pool))
	a.srv = service.New(a.repo, service.Deps{
		TXManager: pg.NewTXManager(pool),
		Notifier:  notify.NewNotifier(a.broker, a.events),
		Mailer: mailer.New(clients.NewHTTPClient(), mailer.Config{
			URL:    cfg.MailerURL,
			APIKey: cfg.MailerAPIKey,
			From:   cfg.MailerFrom,
		}),
		Pricer: engine,
	}, cfg)
	a.api = handlers.New(a.srv, a.broker, cfg.WebhookAPIKey)
	a.sweeper = sweeper.New(a.repo.CodeRepo, a.srv.Wallet, cfg.SweepInterval)

	if cfg.WebhookAPIKey == "" {
		zap.L().Warn("WEBHOOK_API_KEY is empty, bank notifications will be refused")
	}

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.startSweeper(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

// getBroker falls back to an in-process broker when no Redis address is configured.
// That only reaches clients connected to this instance.
func getBroker(ctx context.Context, cfg *config.Config) (notify.Broker, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		zap.L().Info("REDIS_ADDR is empty, realtime events stay in process")
		return notify.NewLocalBroker(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return notify.NewRedisBroker(client), client, nil
}

func pricingConfig(p config.Pricing) pricing.Config {
	cfg := pricing.DefaultConfig()
	cfg.FlashBoostPct = p.FlashBoostPct
	cfg.DuoQueuePct = p.DuoQueuePct
	cfg.SpecificChampPct = p.SpecificChampPct
	cfg.PriorityLanePct = p.PriorityLanePct
	cfg.StreamingFee = p.StreamingFee
	cfg.PlacementGameRate = p.PlacementGame
	cfg.NetWinGameRate = p.NetWinGame
	cfg.PromotionGameRate = p.PromotionGame
	cfg.MasteryLevelRate = p.MasteryLevel
	cfg.LevelingRate = p.LevelingLevel
	cfg.MaxAccountLevel = p.MaxAccountLevel
	return cfg
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:              a.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(sCtx); err != nil {
			zap.L().Error("http server shutdown failed", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startSweeper(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.sweeper.Run(ctx); err != nil {
			a.errCh <- fmt.Errorf("sweeper exited with error: %w", err)
		}
	}()
}

// close runs once the server and workers are stopped. Pending events are flushed before
// the broker connection goes away.
func (a *Application) close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.L().Error("can't close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	a.close()
	close(a.errCh)
	wg.Wait()

	return appErr
}
