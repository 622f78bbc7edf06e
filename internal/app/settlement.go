package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/config"
	healthcheck "github.com/vladislavdragonenkov/fms/internal/health"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/service/settlement"
	"github.com/vladislavdragonenkov/fms/internal/version"
)

// RunSettlementWorker запускает воркер расчёта возмещений: consumer очереди
// заданий с retry и DLQ, метрики и health-чеки. Блокируется до отмены ctx.
func RunSettlementWorker(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "settlement-app")

	if !cfg.KafkaEnabled() {
		return fmt.Errorf("settlement worker requires kafka: set FMS_KAFKA_BROKERS")
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	worker := settlement.NewWorker(
		deps.Settlement,
		deps.Ledger,
		deps.Orders,
		deps.Gateway,
		deps.Locks,
		deps.Notifier,
		settlement.WithLogger(logger.WithField("component", "settlement-worker")),
		settlement.WithLockTTL(cfg.SettlementLockTTL),
	)

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.SettlementGroupID,
		[]string{kafka.TopicSettlementJobs},
		worker.HandleMessage,
		deps.Producer,
		cfg.ConsumerMaxRetries,
	)
	if err != nil {
		return fmt.Errorf("create settlement consumer: %w", err)
	}

	healthHandler := healthcheck.NewHandler(version.Service, version.String())
	if deps.Store != nil {
		healthHandler.Register("postgres", healthcheck.NewPingChecker("postgres", 2*time.Second, deps.Store.Ping))
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	if err := consumer.Start(ctx); err != nil {
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("start settlement consumer: %w", err)
	}
	logger.WithField("group", cfg.SettlementGroupID).Info("settlement worker started")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем settlement worker")

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop settlement consumer")
	}
	shutdownHTTP(metricsSrv, logger)
	return ctx.Err()
}
