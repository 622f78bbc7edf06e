package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/app"
	"github.com/vladislavdragonenkov/fms/internal/config"
)

// setupLogger настраивает формат и уровень логирования для воркера.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("неизвестный уровень логирования, используем info")
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"brokers":      cfg.KafkaBrokers,
		"group":        cfg.SettlementGroupID,
		"metrics_addr": cfg.MetricsAddr,
	}).Info("запускаем settlement-worker")

	if err := app.RunSettlementWorker(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("воркер завершился с ошибкой")
	}

	log.Info("settlement-worker остановлен")
}
