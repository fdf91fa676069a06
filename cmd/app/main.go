package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/config"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	pg "github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/db/postgres"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/logging"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/memlock"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
	payAdapters "github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/payment"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/provisioning"
	red "github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/redis"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/sched"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/web"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	pg.StartPoolStatsReporter(ctx, pool, 15*time.Second)

	// ---- Locker: redis when configured, in-process otherwise ----
	var locker adapter.UserLocker
	if cfg.Redis.Addr != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		locker = red.NewUserLocker(redisClient)
	} else {
		logger.Warn().Msg("redis not configured, using in-process user locks")
		locker = memlock.New()
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	tariffRepo := pg.NewTariffRepo(pool)
	promoRepo := pg.NewPromoRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	discountRepo := pg.NewDiscountRepo(pool)
	methodRepo := pg.NewPaymentMethodRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)
	giftRepo := pg.NewGiftRepo(pool)

	// ---- Payment gateways ----
	gateways := make(map[string]adapter.PaymentGateway)
	if cfg.Payments.YooKassa.Enabled {
		gw := payAdapters.NewYooKassaGateway(cfg.Payments.YooKassa.ShopID, cfg.Payments.YooKassa.SecretKey, cfg.Payments.YooKassa.WebhookSecret)
		gateways[gw.Name()] = gw
	}
	if cfg.Payments.CryptoPay.Enabled {
		gw := payAdapters.NewCryptoPayGateway(cfg.Payments.CryptoPay.APIToken)
		gateways[gw.Name()] = gw
	}
	if len(gateways) == 0 {
		logger.Warn().Msg("no payment gateways enabled, only balance purchases will work")
	}

	// ---- Panel client ----
	panel := provisioning.NewRetryingClient(
		provisioning.NewRemnawaveClient(cfg.Panel.BaseURL, cfg.Panel.Token, cfg.Panel.Timeout, logger),
	)

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase(tariffRepo, promoRepo, discountRepo, logger)
	ledgerUC := usecase.NewLedgerUseCase(ledgerRepo, userRepo, tm, locker, logger)
	syncUC := usecase.NewSyncUseCase(outboxRepo, panel, logger)
	activationUC := usecase.NewActivationUseCase(
		subRepo, tariffRepo, userRepo, methodRepo, outboxRepo, panel, gateways,
		cfg.Payments.AutoPay,
		usecase.DefaultLimits{TrafficLimitBytes: cfg.Limits.TrafficLimitBytes, DeviceLimit: cfg.Limits.DeviceLimit},
		logger,
	)
	paymentUC := usecase.NewPaymentUseCase(
		paymentRepo, userRepo, promoRepo, methodRepo, giftRepo, pricingUC, ledgerUC, activationUC, syncUC,
		tm, locker, gateways, logger,
	)
	subUC := usecase.NewSubscriptionUseCase(subRepo, outboxRepo, tm, logger)
	renewalUC := usecase.NewRenewalUseCase(subRepo, tariffRepo, paymentRepo, methodRepo, pricingUC, gateways, logger)
	giftUC := usecase.NewGiftUseCase(
		giftRepo, paymentRepo, userRepo, promoRepo, pricingUC, activationUC, syncUC,
		tm, locker, gateways, logger,
	)

	// ---- Workers ----
	go func() {
		_ = sched.NewOutboxWorker(cfg.Scheduler.OutboxInterval, 50, syncUC, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, logger).Run(ctx)
	}()
	if cfg.Payments.AutoPay {
		go func() {
			_ = sched.NewRenewalWorker(cfg.Scheduler.RenewalInterval, cfg.Scheduler.RenewalWindow, renewalUC, logger).Run(ctx)
		}()
	}

	// ---- HTTP ----
	webhooks := web.NewWebhookHandler(paymentUC, gateways, logger)
	server := web.NewServer(cfg.Web.Addr, paymentUC, pricingUC, ledgerUC, subUC, giftUC, webhooks, cfg.Web.AdminAPIKey, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	logger.Info().Msg("stopped")
}
