// Package app собирает процессы системы: API-сервер заказов и возвратов,
// relay transactional outbox и воркер расчёта возмещений.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/config"
	healthcheck "github.com/vladislavdragonenkov/fms/internal/health"
	"github.com/vladislavdragonenkov/fms/internal/httpapi"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/service/lockjanitor"
	"github.com/vladislavdragonenkov/fms/internal/service/outbox"
	"github.com/vladislavdragonenkov/fms/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает API-сервер: HTTP API, метрики с health-чеками, relay
// transactional outbox и уборку просроченных блокировок. Блокируется до
// отмены ctx или фатальной ошибки сервера.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	api := httpapi.NewServer(deps.OrdersService, deps.ReturnsService, deps.Ledger, deps.Inventory,
		logger.WithField("component", "http-api"))

	healthHandler := healthcheck.NewHandler(version.Service, version.String())
	if deps.Store != nil {
		healthHandler.Register("postgres", healthcheck.NewPingChecker("postgres", 2*time.Second, deps.Store.Ping))
	}

	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup

	relay := newOutboxRelay(deps, cfg, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(workersCtx)
	}()

	janitor := lockjanitor.NewCleanupWorker(deps.LockStore,
		lockjanitor.WithLogger(logger.WithField("component", "lock-cleanup-worker")))
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(workersCtx)
	}()

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newOutboxRelay собирает relay-воркер outbox. Без Kafka relay выключен:
// воркер сам сообщит об этом и завершится.
func newOutboxRelay(deps *Dependencies, cfg config.Config, logger *log.Entry) *outbox.Worker {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}

	if deps.Producer == nil {
		return outbox.NewWorker(deps.Outbox, nil, options...)
	}

	publisher := kafka.NewOutboxPublisher(deps.Producer)
	options = append(options, outbox.WithDLQPublisher(kafka.NewDLQPublisher(deps.Producer)))
	return outbox.NewWorker(deps.Outbox, publisher, options...)
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
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
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
