package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/breaker"
	"github.com/vladislavdragonenkov/fms/internal/config"
	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/lock"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/service/notify"
	"github.com/vladislavdragonenkov/fms/internal/service/orders"
	"github.com/vladislavdragonenkov/fms/internal/service/payment"
	"github.com/vladislavdragonenkov/fms/internal/service/returns"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
	"github.com/vladislavdragonenkov/fms/internal/storage/postgres"
)

// Dependencies содержит собранный граф зависимостей процесса.
type Dependencies struct {
	Orders     domain.OrderRepository
	Returns    domain.ReturnRepository
	Ledger     domain.LedgerRepository
	Inventory  domain.InventoryRepository
	Outbox     domain.OutboxRepository
	Settlement domain.SettlementRepository
	LockStore  domain.LockStore

	OrdersService  *orders.Service
	ReturnsService *returns.Service
	Locks          *lock.Manager
	Gateway        domain.PaymentGateway
	Notifier       domain.Notifier

	Producer *kafka.Producer
	Store    *postgres.Store
	Logger   *log.Entry
}

// NewDependencies собирает зависимости по конфигурации: хранилище
// (memory или postgres), Kafka producer с notifier-ом за circuit breaker-ом
// и доменные сервисы.
// NOTE: платёжный шлюз — mock; в production здесь должен стоять клиент
// реального провайдера.
func NewDependencies(ctx context.Context, cfg config.Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Gateway: payment.NewMockGateway(),
		Logger:  logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, err
	}
	if err := deps.initKafka(cfg); err != nil {
		deps.Close()
		return nil, err
	}

	deps.Locks = lock.NewManager(deps.LockStore, logger.WithField("component", "lock"))
	deps.OrdersService = orders.NewService(deps.Orders, deps.Notifier, orders.Pricing{
		TaxRateBps:        cfg.TaxRateBps,
		ShippingFlatMinor: cfg.ShippingFlatMinor,
	}, logger.WithField("component", "orders-service"))
	deps.ReturnsService = returns.NewService(deps.Returns, deps.Orders, deps.Notifier,
		cfg.ReturnWindowDays, logger.WithField("component", "returns-service"))

	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg config.Config) error {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		inv := memory.NewInventoryRepository()
		ordersRepo := memory.NewOrderRepository(inv)
		outbox := memory.NewOutboxRepository()
		returnsRepo := memory.NewReturnRepository(outbox)
		ledger := memory.NewLedgerRepository()

		d.Inventory = inv
		d.Orders = ordersRepo
		d.Outbox = outbox
		d.Returns = returnsRepo
		d.Ledger = ledger
		d.Settlement = memory.NewSettlementRepository(returnsRepo, ordersRepo, ledger, inv)
		d.LockStore = memory.NewLockStore()
		d.Logger.Info("using in-memory storage")
		return nil

	case config.StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return fmt.Errorf("apply migrations: %w", err)
			}
		}

		d.Store = store
		d.Inventory = postgres.NewInventoryRepository(store)
		d.Orders = postgres.NewOrderRepository(store)
		d.Outbox = postgres.NewOutboxRepository(store)
		d.Returns = postgres.NewReturnRepository(store)
		d.Ledger = postgres.NewLedgerRepository(store)
		d.Settlement = postgres.NewSettlementRepository(store)
		d.LockStore = postgres.NewLockStore(store)
		d.Logger.Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *Dependencies) initKafka(cfg config.Config) error {
	if !cfg.KafkaEnabled() {
		d.Notifier = notify.NewLogNotifier(d.Logger.WithField("component", "log-notifier"))
		d.Logger.Info("kafka is not configured, notifications go to log")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	d.Producer = producer
	d.Logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	notifierBreaker := breaker.New(cfg.BreakerMaxFailures, cfg.BreakerCooldown,
		d.Logger.WithField("component", "notifier-breaker"))
	d.Notifier = notify.NewKafkaNotifier(producer, notifierBreaker,
		d.Logger.WithField("component", "kafka-notifier"))
	return nil
}

// Close освобождает ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
		d.Producer = nil
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
		d.Store = nil
	}
}
