package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shenikar/sos_dispatch_system/internal/config"
	"github.com/shenikar/sos_dispatch_system/internal/directory"
	"github.com/shenikar/sos_dispatch_system/internal/events"
	v1 "github.com/shenikar/sos_dispatch_system/internal/handler/http/v1"
	"github.com/shenikar/sos_dispatch_system/internal/metrics"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/repository"
	"github.com/shenikar/sos_dispatch_system/internal/repository/memory"
	"github.com/shenikar/sos_dispatch_system/internal/service"
	"github.com/shenikar/sos_dispatch_system/internal/webhook"
	"github.com/shenikar/sos_dispatch_system/pkg/logger"
	"github.com/shenikar/sos_dispatch_system/pkg/postgres"
	redisclient "github.com/shenikar/sos_dispatch_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/sos_dispatch_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title SOS Dispatch System API
// @version 1.0
// @description Emergency incident intake, headquarters dispatch, rescuer mission credentials and live room updates.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey MissionToken
// @in header
// @name X-Mission-Token
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// stores - реализации портов хранения для выбранного драйвера
type stores struct {
	incidents service.IncidentRepository
	missions  service.MissionRepository
	hqs       service.HQReference
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return stores{
			incidents: memory.NewIncidentStore(),
			missions:  memory.NewMissionStore(),
			hqs:       memory.NewHQStore(),
			close:     func() {},
		}, nil
	}

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		return stores{}, err
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	log.Info("Successfully connected to PostgreSQL")

	return stores{
		incidents: repository.NewIncidentRepository(dbpool),
		missions:  repository.NewMissionRepository(dbpool),
		hqs:       repository.NewHeadquartersRepository(dbpool),
		close:     dbpool.Close,
	}, nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.close()

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisPoolSize)
	if err != nil {
		if cfg.RedisRequired {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.WithError(err).Warn("Redis unavailable: cache, webhooks and relay are disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")
	}

	// Метрики и шина событий
	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	bus := events.NewBus(log, appMetrics)

	gateway := realtime.NewGateway(realtime.NewRegistry(), log, appMetrics, cfg.RealtimeBufferSize)
	gateway.Attach(bus)

	sosOpts := []service.SOSOption{service.WithSOSMetrics(appMetrics)}
	if redisClient != nil {
		sosOpts = append(sosOpts, service.WithIncidentCache(repository.NewIncidentCache(redisClient, cfg.CacheTTL)))

		// Инициализация издателя вебхуков и подписка на шину
		webhook.NewForwarder(webhook.NewRedisWebhookPublisher(redisClient)).Attach(bus)

		// Инициализация и запуск воркера вебхуков
		webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
		webhookWorker.Start(ctx)

		if cfg.RelayEnabled {
			relay := realtime.NewRelay(redisClient, cfg.RelayChannel, cfg.InstanceID, gateway, log)
			relay.Attach(bus)
			relay.Start(ctx)
		}
	}

	// Внешние справочники
	var departments service.DepartmentDirectory
	if cfg.CityRegistryURL != "" {
		departments = directory.NewCityClient(cfg.CityRegistryURL, cfg.DirectoryTimeout, log)
	}
	if cfg.IdentityRegistryURL != "" {
		sosOpts = append(sosOpts, service.WithIdentityDirectory(directory.NewIdentityClient(cfg.IdentityRegistryURL, cfg.DirectoryTimeout, log)))
	}

	// Инициализация сервисов
	missionService := service.NewMissionService(st.missions, st.incidents, bus, log, cfg, service.WithMissionMetrics(appMetrics))
	sosOpts = append(sosOpts, service.WithMissionRevoker(missionService))
	sosService := service.NewSOSService(st.incidents, bus, log, cfg, sosOpts...)
	dispatchService := service.NewDispatchService(st.hqs, departments, st.incidents, bus, log, cfg, appMetrics)

	go service.NewMissionSweeper(missionService, cfg.MissionSweepInterval, log).Start(ctx)

	// Инициализация хэндлеров
	handler := v1.NewHandler(sosService, missionService, dispatchService, gateway, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	router.Use(appMetrics.Middleware())
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
		// Контексты запросов наследуют ctx, cancel() закрывает SSE-потоки
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.WithFields(logrus.Fields{
		"port":     cfg.HTTPPort,
		"storage":  cfg.StorageDriver,
		"instance": cfg.InstanceID,
	}).Info("HTTP server started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	// SSE-потоки и фоновые воркеры завершаются по отмене контекста
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
