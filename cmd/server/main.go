package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/adapter/cache"
	"github.com/seu-repo/ocpp-csms/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/ocpp-csms/internal/adapter/http/fiber/middleware"
	v16 "github.com/seu-repo/ocpp-csms/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-csms/internal/adapter/queue"
	"github.com/seu-repo/ocpp-csms/internal/adapter/storage/postgres"
	"github.com/seu-repo/ocpp-csms/internal/adapter/vault"
	wsAdapter "github.com/seu-repo/ocpp-csms/internal/adapter/websocket"
	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-csms/internal/ports"
	"github.com/seu-repo/ocpp-csms/internal/store"
	"github.com/seu-repo/ocpp-csms/pkg/config"
)

const (
	serviceName    = "ocpp-csms"
	serviceVersion = "v1.0.0"
)

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting OCPP CSMS",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, serviceVersion, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Resolve database credentials, optionally via Vault
	databaseURL := cfg.Database.URL
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			logger.Fatal("Failed to initialize Vault client", zap.Error(err))
		}
		databaseURL, err = sm.GetDatabaseCredentials()
		if err != nil {
			logger.Fatal("Failed to read database credentials from Vault", zap.Error(err))
		}
	}

	// 5. Initialize PostgreSQL Connection Pool
	dbCfg := cfg.Database
	dbCfg.URL = databaseURL
	db, err := postgres.NewConnection(dbCfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// 6. Initialize Cache (Redis, with in-memory fallback)
	statusCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to local cache", zap.Error(err))
		statusCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer statusCache.Close()

	// 7. Initialize Message Queue (NATS or RabbitMQ)
	var messageQueue queue.MessageQueue
	switch cfg.Queue.Driver {
	case "rabbitmq":
		messageQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQ.URL, logger)
	default:
		messageQueue, err = queue.NewNATSQueue(cfg.NATS.URL, logger)
	}
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	defer messageQueue.Close()

	// 8. Initialize Repositories and the Store Façade
	chargerRepo := postgres.NewChargerRepository(db, logger)
	idTagRepo := postgres.NewIDTagRepository(db, logger)
	templateRepo := postgres.NewTemplateRepository(db, logger)
	domainStore := store.New(chargerRepo, idTagRepo, templateRepo, statusCache, logger)

	// 9. Initialize OCPP 1.6 Server
	ocppServer := v16.NewServer(domainStore, messageQueue, logger)
	go func() {
		logger.Info("Starting OCPP WebSocket Server", zap.Int("port", cfg.OCPP.Port))
		if err := ocppServer.Start(cfg.OCPP.Port); err != nil {
			logger.Fatal("OCPP Server failed", zap.Error(err))
		}
	}()

	// 10. Initialize WebSocket Hub (for real-time dashboard updates)
	wsHub := wsAdapter.NewHub()
	go wsHub.Run()
	startEventFanout(messageQueue, wsHub, logger)

	// 11. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))
	if cfg.RateLimiting.Enabled {
		app.Use(middleware.RateLimit(cfg.RateLimiting))
	}
	if cfg.CircuitBreaker.Enabled {
		app.Use(middleware.CircuitBreaker(cfg.CircuitBreaker, logger))
	}

	// Health Check Endpoints
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		if err := sqlDB.Ping(); err != nil {
			return c.Status(503).SendString("Database not ready")
		}
		if err := statusCache.Ping(); err != nil {
			return c.Status(503).SendString("Cache not ready")
		}
		return c.SendString("Ready")
	})

	// Metrics endpoint for Prometheus
	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	registerRoutes(app, domainStore, ocppServer, logger)

	// WebSocket upgrade gate for the dashboard feed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/updates", websocket.New(func(c *websocket.Conn) {
		wsHub.AddClient(c)
	}))

	// 12. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 13. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if err := ocppServer.Stop(ctx); err != nil {
		logger.Error("OCPP server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func registerRoutes(app *fiber.App, domainStore *store.Store, ocppServer *v16.Server, logger *zap.Logger) {
	var commands ports.CommandService = ocppServer
	var directory ports.SessionDirectory = ocppServer

	chargerHandler := handlers.NewChargerHandler(domainStore, directory, logger)
	commandHandler := handlers.NewCommandHandler(commands, logger)
	idTagHandler := handlers.NewIDTagHandler(domainStore, logger)
	templateHandler := handlers.NewTemplateHandler(domainStore, commands, logger)
	debugHandler := handlers.NewDebugHandler(directory, logger)

	v1 := app.Group("/api/v1")

	// Charger inventory
	v1.Get("/chargers", chargerHandler.List)
	v1.Get("/chargers/:id", chargerHandler.Get)
	v1.Delete("/chargers/:id", chargerHandler.Delete)
	v1.Get("/chargers/:id/logs", chargerHandler.GetLogs)
	v1.Delete("/chargers/:id/logs", chargerHandler.ClearLogs)
	v1.Get("/chargers/:id/connectors", chargerHandler.GetConnectors)
	v1.Get("/chargers/:id/vendor-settings", chargerHandler.GetVendorSettings)
	v1.Put("/chargers/:id/vendor-settings", chargerHandler.SetVendorSettings)
	v1.Get("/transactions/active", chargerHandler.ActiveTransactions)

	// OCPP commands
	v1.Post("/chargers/:id/remote-start", commandHandler.RemoteStart)
	v1.Post("/chargers/:id/remote-stop", commandHandler.RemoteStop)
	v1.Post("/chargers/:id/configuration/get", commandHandler.GetConfiguration)
	v1.Post("/chargers/:id/configuration", commandHandler.ChangeConfiguration)
	v1.Post("/chargers/:id/clear-cache", commandHandler.ClearCache)
	v1.Post("/chargers/:id/reset", commandHandler.Reset)
	v1.Post("/chargers/:id/trigger/:message", commandHandler.TriggerMessage)
	v1.Post("/chargers/:id/local-list", commandHandler.SendLocalList)
	v1.Get("/chargers/:id/local-list/version", commandHandler.GetLocalListVersion)
	v1.Delete("/chargers/:id/local-list", commandHandler.ClearLocalList)
	v1.Post("/chargers/:id/data-transfer", commandHandler.DataTransfer)
	v1.Post("/chargers/:id/availability", commandHandler.ChangeAvailability)
	v1.Post("/chargers/:id/reservations", commandHandler.ReserveNow)
	v1.Delete("/chargers/:id/reservations/:reservationId", commandHandler.CancelReservation)
	v1.Post("/chargers/:id/charging-profile", commandHandler.SetChargingProfile)
	v1.Delete("/chargers/:id/charging-profile", commandHandler.ClearChargingProfile)
	v1.Get("/chargers/:id/composite-schedule", commandHandler.GetCompositeSchedule)
	v1.Post("/chargers/:id/firmware/update", commandHandler.UpdateFirmware)
	v1.Post("/chargers/:id/diagnostics", commandHandler.GetDiagnostics)
	v1.Post("/chargers/:id/unlock", commandHandler.UnlockConnector)
	v1.Post("/chargers/:id/raw", commandHandler.SendRaw)

	// Authorization table
	v1.Get("/id-tags", idTagHandler.List)
	v1.Get("/id-tags/:tag", idTagHandler.Get)
	v1.Put("/id-tags", idTagHandler.Upsert)
	v1.Delete("/id-tags/:tag", idTagHandler.Delete)

	// Data-transfer templates
	v1.Get("/templates", templateHandler.List)
	v1.Post("/templates", templateHandler.Create)
	v1.Put("/templates/:templateId", templateHandler.Update)
	v1.Delete("/templates/:templateId", templateHandler.Delete)
	v1.Post("/templates/:templateId/send/:id", templateHandler.Send)

	// Connection debugging
	v1.Get("/debug/connections", debugHandler.Connections)
	v1.Post("/debug/connections/sweep", debugHandler.Sweep)
	v1.Delete("/debug/connections/:id", debugHandler.Disconnect)
}

// startEventFanout bridges queue subjects into the dashboard hub.
func startEventFanout(mq queue.MessageQueue, hub *wsAdapter.Hub, logger *zap.Logger) {
	subjects := []string{
		domain.SubjectChargerConnected,
		domain.SubjectChargerDisconnected,
		domain.SubjectTransactionStarted,
		domain.SubjectTransactionStopped,
		domain.SubjectStatusChanged,
	}
	for _, subject := range subjects {
		if err := mq.Subscribe(subject, func(data []byte) error {
			hub.Broadcast(data)
			return nil
		}); err != nil {
			logger.Error("Failed to subscribe to event subject",
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}
}
