package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"bloodbank/common/database"
	commonlogger "bloodbank/common/logger"
	"bloodbank/common/mqtt"
	rediscommon "bloodbank/common/redis"
	"bloodbank/internal/config"
	"bloodbank/internal/consumer"
	"bloodbank/internal/domain"
	httpapi "bloodbank/internal/http"
	"bloodbank/internal/repository"
	"bloodbank/internal/service"
	"bloodbank/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// repositories the services run against; Postgres or the in-memory fallback
type repositories struct {
	inventory repository.InventoryRepository
	donations repository.DonationsRepository
	hospitals repository.HospitalsRepository
	admins    repository.AdminsRepository
}

func main() {
	cfg := config.Load()

	logger, err := commonlogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "bloodbank")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			logger.Info("DB enabled", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Database))
		} else {
			logger.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(err))
		}
	}

	var repos repositories
	if db != nil {
		hospitals := repository.NewPostgresHospitalsRepository(db)
		repos = repositories{
			inventory: repository.NewPostgresInventoryRepository(db),
			donations: repository.NewPostgresDonationsRepository(db),
			hospitals: hospitals,
			admins:    hospitals,
		}
	} else {
		mem := repository.NewMemoryStore()
		seedDemo(mem, logger)
		repos = repositories{inventory: mem, donations: mem, hospitals: mem, admins: mem}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis: session revocation and the cross-instance invalidation stream
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		c := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, c); err != nil {
			logger.Warn("Redis enabled but unreachable, session revocation stays in-process", zap.Error(err))
			_ = c.Close()
		} else {
			redisClient = c
		}
	}

	// "today" and the expiry sweep both follow TIMEZONE
	loc := cfg.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	var kv store.KV = store.NewMemoryKV(clock, cfg.Cache.DefaultTTL)
	var events service.EventPublisher = service.NoopEventPublisher{}
	if redisClient != nil {
		kv = store.NewRedisKV(redisClient)
		events = service.NewStreamEventPublisher(redisClient, cfg.Events.Stream, cfg.Events.InstanceID)
	}

	notifier, mqttClient := buildNotifier(cfg, logger)

	inventory := service.NewInventoryService(repos.inventory, cfg.Cache.InventoryTTL, clock, commonlogger.Named(logger, "inventory"))
	surplus := service.NewSurplusService(inventory, repos.inventory, cfg.Cache.SurplusTTL, clock, commonlogger.Named(logger, "surplus"))
	hospitals := service.NewHospitalService(repos.hospitals, cfg.Cache.HospitalTTL, clock)
	donations := service.NewDonationService(repos.donations, inventory, surplus, hospitals, events, notifier, clock, commonlogger.Named(logger, "donations"))
	auth := service.NewAuthService(repos.admins, hospitals, kv, cfg.Session.Secret, cfg.Session.TTL, commonlogger.Named(logger, "auth"))

	if redisClient != nil {
		c := consumer.NewInventoryEventConsumer(redisClient, donations, commonlogger.Named(logger, "event-consumer"), cfg.Events.Stream, cfg.Events.InstanceID)
		go func() {
			if err := c.Start(ctx); err != nil {
				logger.Error("Inventory event consumer stopped", zap.Error(err))
			}
		}()
	}

	scheduler := service.NewExpiryScheduler(cfg.Expiry.Cron, cfg.Expiry.WarnDays, loc, inventory, notifier, commonlogger.Named(logger, "expiry"))
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to schedule expiry sweep", zap.Error(err))
	}

	router := httpapi.NewRouter(httpapi.NewSessionMiddleware(auth, commonlogger.Named(logger, "session")), commonlogger.Named(logger, "http"))
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(auth, hospitals, !cfg.IsDevelopment(), logger))
	router.RegisterHospitalRoutes(httpapi.NewHospitalHandler(hospitals))
	router.RegisterSurplusRoutes(httpapi.NewSurplusHandler(inventory, surplus))
	router.RegisterDonationRoutes(httpapi.NewDonationHandler(donations, logger))

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if err := donations.WaitNotices(shutdownCtx); err != nil {
		logger.Warn("Shortage notices still in flight at shutdown", zap.Error(err))
	}
	scheduler.Stop()
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = database.Close(db)
	}
}

// buildNotifier fans out to MQTT and the webhook when configured; neither is required.
func buildNotifier(cfg *config.Config, logger *zap.Logger) (service.Notifier, *mqtt.Client) {
	var notifiers service.MultiNotifier
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := mqtt.NewClient(&cfg.MQTT.Broker)
		if err != nil {
			logger.Warn("MQTT enabled but connection failed, notices will not be published", zap.Error(err))
		} else {
			mqttClient = c
			notifiers = append(notifiers, service.NewMQTTNotifier(c, cfg.MQTT.TopicPrefix))
		}
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, service.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Token, commonlogger.Named(logger, "webhook")))
	}
	return notifiers, mqttClient
}

// seedDemo dev bootstrap for the in-memory fallback: one hospital and its admin.
func seedDemo(mem *repository.MemoryStore, logger *zap.Logger) {
	password := os.Getenv("DEMO_ADMIN_PASSWORD")
	if password == "" {
		password = "ChangeMe123!"
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash demo admin password", zap.Error(err))
		return
	}
	mem.UpsertHospital(domain.Hospital{HospitalID: 1, HospitalName: "Demo General Hospital"})
	mem.UpsertAdmin(1, "admin", hash)
	logger.Info("Seeded in-memory demo hospital", zap.String("username", "admin"))
}
