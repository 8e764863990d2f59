package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"couponhub/internal/config"
	"couponhub/internal/handler"
	"couponhub/internal/infrastructure/cache"
	"couponhub/internal/infrastructure/database"
	"couponhub/internal/infrastructure/mq"
	"couponhub/internal/infrastructure/push"
	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/job"
	"couponhub/internal/service"
	"couponhub/pkg/idgen"
	"couponhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// app holds the shared infrastructure every command starts from.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *gorm.DB
	redis  *redis.Client
	ledger *service.LedgerService
	subs   *service.SubscriptionService
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.Bool("dev") {
		cfg.Log.Development = true
	}

	log, err := logger.NewLogger(cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Slip.Endpoint == "" {
		log.Warn("slip.endpoint is empty, every payment slip will be accepted")
	}

	if err := idgen.Init(1); err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb, err := cache.NewRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	ledger := service.NewLedgerService(db, rdb, cfg, log)
	referral := service.NewReferralService(db, cfg, log, ledger)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		redis:  rdb,
		ledger: ledger,
		subs:   service.NewSubscriptionService(db, cfg, log, ledger, referral),
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

func migrate(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.Migrate(a.db); err != nil {
		return err
	}
	a.log.Info("migration finished")
	return nil
}

func sweepOnce(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	sweeper := job.NewSubscriptionSweeper(a.subs, a.log, a.cfg.Business.SweepSpec)
	sweeper.RunOnce(c.Context)
	return nil
}

// requeueOutbox moves FAILED outbox rows back to PENDING. The running server
// publishes them on its next tick.
func requeueOutbox(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()

	sender := job.NewOutboxSender(a.db, a.cfg, a.log, nil, nil)
	n, err := sender.Requeue(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("requeued %d message(s)\n", n)
	return nil
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	var sender push.Sender = push.NopSender{}
	if cfg.Telegram.BotToken != "" {
		tg, err := push.NewTelegramSender(log, cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		sender = tg
	}

	notifications := service.NewNotificationService(a.db, cfg, log)
	topUps := service.NewTopUpService(a.db, cfg, log, a.ledger, slip.New(&cfg.Slip))
	h := handler.NewHandler(handler.Services{
		Ledger:        a.ledger,
		Subscriptions: a.subs,
		Withdrawals:   service.NewWithdrawalService(a.db, cfg, log, a.ledger, notifications),
		TopUps:        topUps,
		Accounting:    service.NewAccountingService(a.db, log),
		Catalog:       service.NewCatalogService(a.db, log, a.subs),
		Notifications: notifications,
	}, log)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outboxSender := job.NewOutboxSender(a.db, cfg, log, producer, job.NewPushDispatcher(sender))
	go outboxSender.Start(ctx)

	topUpTimeout := job.NewTopUpTimeoutJob(topUps, log)
	go topUpTimeout.Start(ctx)

	sweeper := job.NewSubscriptionSweeper(a.subs, log, cfg.Business.SweepSpec)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	verifier := handler.NewTokenVerifier(cfg.JWT.Secret)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRouter(h, log, handler.AuthMiddleware(verifier)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http shutdown", "err", err)
	}
	sweeper.Stop()

	log.Info("server stopped")
	return nil
}
