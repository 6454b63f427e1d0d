package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/sales/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sales/internal/service/outbox"
	"github.com/vladislavdragonenkov/sales/internal/service/rest"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
	"github.com/vladislavdragonenkov/sales/internal/version"
)

// Config описывает настройки запуска сервиса продаж.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	PostgresDSN  string
	RedisAddr    string
	StockURL     string
	KafkaBrokers string
}

// DefaultConfig возвращает адреса по умолчанию; внешние бэкенды выключены.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

// Run собирает зависимости и держит сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	manager := sales.NewManager(
		deps.SaleRepo,
		deps.ProductRepo,
		deps.StockSvc,
		deps.OutboxRepo,
		deps.TimelineRepo,
		logger.WithField("component", "sale-manager"),
	)

	// Фоновые воркеры: доставка событий из outbox и чистка idempotency ключей.
	workersDone := startWorkers(ctx, deps, logger)

	healthHandler := buildHealthHandler(deps)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	handler := rest.NewSalesHandler(
		manager,
		deps.SaleRepo,
		deps.TimelineRepo,
		deps.IdempotencyRepo,
		logger.WithField("component", "sales-http"),
	)

	productsHandler := rest.NewProductsHandler(
		deps.ProductRepo,
		logger.WithField("component", "products-http"),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	handler.RegisterRoutes(router)
	productsHandler.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		<-workersDone
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		<-workersDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startWorkers запускает фоновые процессы и возвращает канал их завершения.
func startWorkers(ctx context.Context, deps *Dependencies, logger *log.Entry) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		workerCtx := ctx
		finished := make(chan struct{}, 2)
		running := 0

		if deps.KafkaProducer != nil {
			publisher := kafka.NewOutboxPublisher(deps.KafkaProducer, kafka.TopicSaleEvents)
			dlqPublisher := kafka.NewOutboxPublisher(deps.KafkaProducer, kafka.TopicDeadLetterQueue)
			worker := outbox.NewWorker(deps.OutboxRepo, publisher,
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(dlqPublisher),
			)
			running++
			go func() {
				worker.Run(workerCtx)
				finished <- struct{}{}
			}()
		} else {
			logger.Info("kafka не настроен, события остаются в outbox")
		}

		cleanup := idempotency.NewCleanupWorker(deps.IdempotencyRepo,
			idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		)
		running++
		go func() {
			cleanup.Run(workerCtx)
			finished <- struct{}{}
		}()

		for i := 0; i < running; i++ {
			<-finished
		}
	}()

	return done
}

// buildHealthHandler регистрирует проверки реально подключённых бэкендов.
func buildHealthHandler(deps *Dependencies) *healthcheck.Handler {
	v, _, _ := version.Info()
	handler := healthcheck.NewHandler(v)

	if deps.Store != nil {
		handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func(ctx context.Context) error {
			return deps.Store.Ping(ctx)
		}))
	}
	if deps.RedisClient != nil {
		handler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func(ctx context.Context) error {
			return deps.RedisClient.Ping(ctx).Err()
		}))
	}

	return handler
}

// requestLogger пишет access-лог через logrus вместо стандартного логгера gin.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
