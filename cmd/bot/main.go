package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"access-bot-backend/internal/bot"
	rcache "access-bot-backend/internal/cache/redis"
	"access-bot-backend/internal/common/logger"
	"access-bot-backend/internal/config"
	httpapi "access-bot-backend/internal/http"
	"access-bot-backend/internal/metrics"
	"access-bot-backend/internal/platform/cryptopay"
	"access-bot-backend/internal/platform/db"
	rplatform "access-bot-backend/internal/platform/redis"
	"access-bot-backend/internal/repository/sqldb"
	"access-bot-backend/internal/service/access"
	"access-bot-backend/internal/service/notifications"
	"access-bot-backend/internal/service/payment"
	"access-bot-backend/internal/service/staff"
	"access-bot-backend/internal/texts"
	"access-bot-backend/internal/transport/telegram"
	"access-bot-backend/internal/workers"
)

// @title           Access Bot API
// @version         1.0
// @description     Staff arbitration API for the access bot Mini App and provider webhooks.

// @BasePath  /

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Telegram Mini App init_data string for authentication

// @tag.name staff
// @tag.description Payment arbitration

const (
	shutdownTimeout    = 15 * time.Second
	invoiceDescription = "Доступ к сервису"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(cfg.ServiceName, cfg.Debug, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	dbc, err := db.Open(ctx, cfg.Database.URL, db.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		Debug:           cfg.Debug,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbc.Close()
	if cfg.Database.AutoMigrate {
		if err := sqldb.AutoMigrate(ctx, dbc.Gorm()); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}
	repo := sqldb.NewAccountRepository(dbc.Gorm())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Payments
	var provider payment.InvoiceProvider
	if cfg.CryptoEnabled() {
		provider = cryptopay.NewClient(cfg.CryptoPay.BaseURL, cfg.CryptoPay.Token,
			cryptopay.WithTimeout(cfg.CryptoPay.Timeout),
			cryptopay.WithRateLimit(cfg.CryptoPay.RPS),
			cryptopay.WithObserver(m.ProviderCall),
		)
	} else {
		logger.Warn().Msg("CRYPTO_PAY_TOKEN is not set, crypto payments are disabled")
	}
	if !cfg.RubEnabled() {
		logger.Warn().Msg("RUB_PAY_URL is not set, rub payments are disabled")
	}

	catalog, err := texts.Load(cfg.TextsFile, texts.Vars{
		"price_rub":  cfg.Payment.PriceRUB.String(),
		"currency":   cfg.Payment.CurrencySymbolRUB,
		"price_usdt": cfg.Payment.PriceUSDT.String(),
		"asset":      cfg.CryptoPay.Asset,
		"support":    cfg.Payment.SupportContact,
		"access_url": cfg.Payment.AccessURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load texts")
	}

	resolver := access.NewResolver(cfg.Telegram.OwnerIDs, repo)
	reconciler := payment.NewReconciler(repo, provider, cfg.CryptoPay.Asset, invoiceDescription, m)
	rail := payment.NewManualRail(repo, cfg.Payment.RubPayURL)
	staffSvc := staff.NewService(repo, resolver, m)

	handler := bot.NewHandler(bot.Deps{
		Texts:     catalog,
		Repo:      repo,
		Resolver:  resolver,
		Payments:  reconciler,
		Rail:      rail,
		Staff:     staffSvc,
		PriceUSDT: cfg.Payment.PriceUSDT,
		QR:        bot.EncodeQR,
	})

	// Redis-backed throttle and webhook stream are optional
	var (
		rdb      *rplatform.Client
		limiter  telegram.Limiter
		stream   *workers.PaymentStream
		webhooks httpapi.WebhookSink
	)
	if cfg.RedisEnabled() {
		rdb, err = rplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()
		limiter = rcache.NewThrottle(rdb, cfg.Throttle.Limit, cfg.Throttle.Window)

		hostname, _ := os.Hostname()
		stream = workers.NewPaymentStream(rdb, reconciler, cfg.Redis.Stream, cfg.Redis.Group, cfg.ServiceName+"-"+hostname)
		if err := stream.EnsureGroup(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create payments stream group")
		}
		webhooks = httpapi.WebhookSinkFunc(stream.Publish)
	} else {
		webhooks = httpapi.WebhookSinkFunc(func(ctx context.Context, body []byte) error {
			u, err := cryptopay.ParseUpdate(body)
			if err != nil {
				return err
			}
			_, err = reconciler.ApplyWebhook(ctx, u)
			return err
		})
	}

	tg, err := telegram.NewBot(telegram.Options{
		Token:         cfg.Telegram.BotToken,
		PollTimeout:   cfg.Telegram.PollTimeout,
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
	}, handler, limiter, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create telegram bot")
	}

	notifier := bot.NewNotifier(notifications.NewService(tg, resolver, m), handler)
	reconciler.SetListener(notifier)
	rail.SetListener(notifier)
	rail.SetForwarder(notifier)
	staffSvc.SetListener(notifier)

	checks := []httpapi.HealthCheck{{Name: "database", Check: dbc.HealthCheck}}
	if rdb != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: rdb.HealthCheck})
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Debug:        cfg.Debug,
		CORSOrigins:  cfg.HTTP.CORSAllowedOrigins,
		Checks:       checks,
		Gatherer:     reg,
		WebhookToken: cfg.CryptoPay.Token,
		Webhooks:     webhooks,
		BotToken:     cfg.Telegram.BotToken,
		InitDataTTL:  cfg.Telegram.InitDataTTL,
		Staff:        staffSvc,
	})
	server := httpapi.NewServer(cfg.HTTP.Addr, router)

	// Background workers
	var wg sync.WaitGroup
	var poller *workers.InvoicePoller
	if provider != nil {
		poller = workers.NewInvoicePoller(reconciler, cfg.CryptoPay.PollInterval, cfg.CryptoPay.PollBatch)
		poller.Start(ctx)
	}
	if stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream.Start(ctx)
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		tg.Start(ctx)
	}()

	logger.Info().
		Bool("crypto", cfg.CryptoEnabled()).
		Bool("rub", cfg.RubEnabled()).
		Bool("redis", cfg.RedisEnabled()).
		Int("owners", len(cfg.Telegram.OwnerIDs)).
		Msg("Access bot started")

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if poller != nil {
		poller.Stop()
	}
	wg.Wait()
	logger.Info().Msg("Stopped")
}
