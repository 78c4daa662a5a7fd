package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"academia_backend/internals/configs"
	database "academia_backend/internals/databases"
	"academia_backend/internals/features/access/device"
	accessService "academia_backend/internals/features/access/service"
	billingRepository "academia_backend/internals/features/finance/billings/repository"
	billingService "academia_backend/internals/features/finance/billings/service"
	paymentRepository "academia_backend/internals/features/finance/payments/repository"
	paymentService "academia_backend/internals/features/finance/payments/service"
	"academia_backend/internals/features/finance/scheduler"
	middlewares "academia_backend/internals/middlewares"
	routes "academia_backend/internals/route"
	routeDetails "academia_backend/internals/route/details"
	"academia_backend/internals/seeds"
)

func main() {
	configs.LoadEnv()
	cfg := configs.LoadBillingConfig()

	log, err := configs.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault})) // gzip
	app.Use(etag.New())                                                  // 304 caching

	// 🔎 Request-ID + per-request deadline
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	middlewares.SetupMiddlewares(app, log)

	// 🔌 DB connect + migrate + pool
	if err := database.ConnectDB(log); err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if configs.GetEnv("DB_AUTO_MIGRATE", "true") == "true" {
		if err := database.Migrate(database.DB); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}
	if configs.GetEnv("SEED_DEMO") == "true" {
		seeds.RunAllSeeds(database.DB, log)
	}
	database.TunePool(log)
	database.WarmUpQueries(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 💳 billing engine
	repo := billingRepository.New(database.DB)
	billing := billingService.New(repo, billingService.Options{
		Defaults:         cfg.Policy,
		Logger:           log,
		Metrics:          billingService.NewMetrics(reg),
		Concurrency:      cfg.BatchConcurrency,
		SuspendAfterDays: cfg.PlatformSuspendAfterDays,
	})

	// 🚪 access controller + reconciler
	var dev device.Device = device.Nop{}
	if cfg.DeviceBaseURL != "" {
		dev = device.NewControlIDClient(device.ClientOptions{
			BaseURL:       cfg.DeviceBaseURL,
			Login:         cfg.DeviceLogin,
			Password:      cfg.DevicePassword,
			Timeout:       cfg.DeviceTimeout,
			RatePerSecond: cfg.DeviceRatePerSecond,
			Burst:         cfg.DeviceBurst,
			Logger:        log,
		})
	} else {
		log.Warn("ACCESS_DEVICE_URL not set, access reconciliation runs without a controller")
	}
	rec := accessService.NewReconciler(repo, billing, dev, accessService.Options{
		GroupID:  cfg.DeviceGroupID,
		Logger:   log,
		Registry: reg,
	})
	pool := accessService.NewPool(rec, accessService.PoolOptions{
		Workers:    cfg.ReconcileWorkers,
		QueueSize:  cfg.ReconcileQueueSize,
		JobTimeout: cfg.ReconcileJobTimeout,
		Logger:     log,
	})
	pool.Start()
	billing.SetAccessTrigger(pool)

	// ✅ MIDTRANS
	var gateway *paymentService.GatewayService
	if cfg.MidtransServerKey != "" {
		gateway = paymentService.NewGatewayService(
			repo,
			billing,
			paymentService.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransEnv == "production"),
			paymentRepository.NewEventRepository(database.DB),
			paymentService.GatewayOptions{
				ServerKey: cfg.MidtransServerKey,
				Expiry:    cfg.GatewayExpiry,
				Logger:    log,
				Registry:  reg,
			},
		)
	} else {
		log.Warn("MIDTRANS_SERVER_KEY not set, gateway routes disabled")
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	background := make(chan struct{}, 2)

	// 📣 LISTEN for reconcile requests from other services
	go func() {
		defer func() { background <- struct{}{} }()
		l := accessService.NewListener(database.DSN(), cfg.ReconcileChannel, pool, log)
		if err := l.Run(bgCtx); err != nil {
			log.Error("reconcile listener stopped", zap.Error(err))
		}
	}()

	// ⏱ scheduler setelah DB siap
	go func() {
		defer func() { background <- struct{}{} }()
		if !cfg.SchedulerEnabled {
			log.Info("scheduler disabled")
			return
		}
		var lock scheduler.Locker = scheduler.LocalLock{}
		if cfg.RedisURL != "" {
			rl, err := scheduler.NewRedisLockFromURL(cfg.RedisURL)
			if err != nil {
				log.Error("redis lock, falling back to local", zap.Error(err))
			} else {
				defer rl.Close()
				lock = rl
			}
		}
		var poller scheduler.GatewayPoller
		if gateway != nil {
			poller = gateway
		}
		jobs := scheduler.BillingJobs(billing, poller, scheduler.Intervals{
			Sweep:       cfg.SweepInterval,
			Generate:    cfg.GenerateInterval,
			GatewayPoll: cfg.GatewayPollInterval,
		}, nil, log)
		scheduler.New(scheduler.Options{
			Lock:       lock,
			LockTTL:    cfg.SchedulerLockTTL,
			RunOnStart: true,
			Logger:     log,
		}, jobs...).Run(bgCtx)
	}()

	// ✅ Routes
	routes.SetupRoutes(app, routeDetails.Services{
		Billing:    billing,
		Gateway:    gateway,
		Reconciler: rec,
		Pool:       pool,
	}, routes.Options{
		JWTSecret: configs.JWTSecret,
		Gatherer:  reg,
		Env:       configs.GetEnv("APP_ENV", "development"),
		Logger:    log,
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	go func() {
		log.Info("✅ listening", zap.String("port", port))
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: stop intake, stop batches, drain reconciles, close pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	stopBackground()
	for i := 0; i < 2; i++ {
		select {
		case <-background:
		case <-ctx.Done():
		}
	}
	if err := pool.Shutdown(ctx); err != nil {
		log.Warn("reconcile pool did not drain", zap.Error(err))
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
