package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/PerkFox/app/controllers"
	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
	apiv1 "github.com/ManuelReschke/PerkFox/internal/api/v1"
	"github.com/ManuelReschke/PerkFox/internal/pkg/access"
	"github.com/ManuelReschke/PerkFox/internal/pkg/billing"
	"github.com/ManuelReschke/PerkFox/internal/pkg/cache"
	"github.com/ManuelReschke/PerkFox/internal/pkg/catalog"
	"github.com/ManuelReschke/PerkFox/internal/pkg/claims"
	"github.com/ManuelReschke/PerkFox/internal/pkg/constants"
	"github.com/ManuelReschke/PerkFox/internal/pkg/database"
	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
	"github.com/ManuelReschke/PerkFox/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/PerkFox/internal/pkg/health"
	"github.com/ManuelReschke/PerkFox/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/PerkFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PerkFox/internal/pkg/mail"
	"github.com/ManuelReschke/PerkFox/internal/pkg/metrics"
	"github.com/ManuelReschke/PerkFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PerkFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/PerkFox/internal/pkg/router"
	"github.com/ManuelReschke/PerkFox/internal/pkg/s3backup"
	"github.com/ManuelReschke/PerkFox/internal/pkg/security"
	"github.com/ManuelReschke/PerkFox/internal/pkg/statistics"
)

const version = "1.0.0"

func main() {
	app, shutdown := NewApplication()

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[PerkFox] Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("[PerkFox] HTTP shutdown error: %v", err)
	}
	shutdown()
}

// NewApplication wires all components and returns the app together with a
// function that stops the background workers.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	rdb := cache.GetClient()

	if err := models.LoadSettings(db); err != nil {
		log.Printf("[PerkFox] Failed to load settings, using defaults: %v", err)
	}
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/perkfox to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	tokens, err := security.NewTokenService(env.GetEnv("APP_SECRET", ""), "perkfox",
		time.Duration(env.GetEnvInt("TOKEN_TTL_HOURS", 24))*time.Hour)
	if err != nil {
		log.Fatalf("[PerkFox] %v", err)
	}

	// observability
	m := metrics.New()
	counters := counter.New(rdb, db)
	unlocks := cache.NewUnlockSet(rdb, cache.DefaultUnlockTTL)
	stats := statistics.NewService(db, rdb)

	checker := health.NewChecker().WithCache(rdb)
	checker.Add("database", health.DatabaseProbe(db))
	checker.Add("redis", health.RedisProbe(rdb))

	// background jobs
	queue := jobqueue.NewQueue(rdb, env.GetEnvInt("QUEUE_WORKERS", 3))
	mailer := mail.NewSMTPMailerFromEnv()
	notifier := mail.NewClaimNotifier(repos.User, mailer, func() bool {
		return mailer.Enabled() && models.GetAppSettings().IsClaimMailEnabled()
	})
	queue.Register(jobqueue.JobTypeClaimMail, jobqueue.NewClaimMailHandler(repos, notifier))

	var mirror imageprocessor.Mirror
	if s3cfg, err := s3backup.LoadConfig(); err != nil {
		log.Printf("[S3Backup] Invalid configuration, logo mirroring disabled: %v", err)
	} else if s3cfg.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := s3backup.NewClient(ctx, s3cfg)
		cancel()
		if err != nil {
			log.Printf("[S3Backup] Logo mirroring disabled: %v", err)
		} else {
			queue.Register(jobqueue.JobTypeLogoMirror, jobqueue.NewLogoMirrorHandler(client))
			mirror = jobqueue.NewLogoMirrorDispatcher(queue)
			checker.Add("s3", client.Ping)
		}
	}

	// domain services
	resolver := access.NewResolver(repos.Deal, repos.Subscription, repos.Exception, repos.Service,
		access.WithRecorder(m))
	recorder := claims.NewRecorder(repos, resolver,
		claims.WithEnabled(func() bool { return models.GetAppSettings().IsClaimsEnabled() }),
		claims.WithUnlockCache(unlocks),
		claims.WithClaimCounter(counters),
		claims.WithNotifier(jobqueue.NewClaimMailDispatcher(queue)),
		claims.WithMetrics(m),
	)
	catalogService := catalog.NewService(repos.Deal, repos.Unlock, unlocks, counters)
	billingService := billing.NewServiceFromDB(db, billing.ConfigFromEnv()).
		WithExpiryObserver(m).
		WithUnlockInvalidator(unlocks)

	manager := jobqueue.NewManager(queue, counters, billingService)
	manager.Start()
	checker.Start(time.Minute)

	auth := controllers.NewAuthController(repos.User, tokens)
	if verifier := hcaptcha.FromEnv(); verifier != nil {
		auth.RequireCaptcha(verifier)
	}
	server := &apiv1.APIServer{
		Auth:    auth,
		Deals:   controllers.NewDealController(catalogService, recorder),
		Account: controllers.NewAccountController(repos),
		Billing: controllers.NewBillingController(repos, billingService),
		Admin: controllers.NewAdminController(repos, billingService,
			controllers.WithLogoStore(imageprocessor.NewLogoProcessorFromEnv(mirror)),
			controllers.WithUnlockInvalidator(unlocks),
			controllers.WithQueueStats(queue),
			controllers.WithStatistics(stats),
		),
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "PerkFox " + version,
		BodyLimit: 16 * 1024 * 1024, // logo uploads
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	metricsAuth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	})
	app.Get(constants.MetricsRoute, metricsAuth, monitor.New())
	app.Get(constants.MetricsRoute+"/prometheus", metricsAuth, adaptor.HTTPHandler(promhttp.Handler()))

	// static uploads
	app.Static(constants.UploadsRoute, env.GetEnv("UPLOAD_DIR", basePath+constants.UploadsPath), fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: constants.DocsRoute + "/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		API:       server,
		Tokens:    tokens,
		Users:     repos.User,
		RateLimit: ratelimit.FromEnv(ratelimit.NewStorage(rdb)),
		Health:    checker,
		Version:   version,
	})

	shutdown := func() {
		checker.Stop()
		manager.Stop()
	}
	return app, shutdown
}
