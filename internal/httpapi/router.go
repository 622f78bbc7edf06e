// Package httpapi предоставляет REST-интерфейс системы: заказы, возвраты,
// остатки и финансовые записи. Транспорт тонкий: вся бизнес-логика живёт в
// сервисах, здесь только декодирование, маршрутизация и коды ответов.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/orders"
	"github.com/vladislavdragonenkov/fms/internal/service/returns"
)

// headerActor передаёт инициатора операции для записей журнала статусов.
const headerActor = "X-Actor"

// Server связывает HTTP-маршруты с сервисами.
type Server struct {
	orders  *orders.Service
	returns *returns.Service
	ledger  domain.LedgerRepository
	stock   domain.InventoryRepository
	logger  *log.Entry
}

// NewServer создаёт HTTP-слой поверх сервисов. ledger и stock могут быть
// nil — соответствующие маршруты тогда не регистрируются.
func NewServer(ordersSvc *orders.Service, returnsSvc *returns.Service, ledger domain.LedgerRepository, stock domain.InventoryRepository, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{
		orders:  ordersSvc,
		returns: returnsSvc,
		ledger:  ledger,
		stock:   stock,
		logger:  logger,
	}
}

// Router собирает chi-маршрутизатор со всеми ручками API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.handlePlaceOrder)
			r.Get("/{orderID}", s.handleGetOrder)
			r.Post("/{orderID}/status", s.handleAdvanceStatus)
			if s.ledger != nil {
				r.Get("/{orderID}/ledger", s.handleOrderLedger)
			}
		})

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", s.handleRequestReturn)
			r.Get("/{returnID}", s.handleGetReturn)
			r.Post("/{returnID}/pickup", s.handleSchedulePickup)
			r.Post("/{returnID}/inspection", s.handleRecordInspection)
			if s.ledger != nil {
				r.Get("/{returnID}/ledger", s.handleReturnLedger)
			}
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/orders", s.handleListUserOrders)
			r.Get("/returns", s.handleListUserReturns)
		})

		if s.stock != nil {
			r.Route("/products/{productID}/stock", func(r chi.Router) {
				r.Get("/", s.handleGetStock)
				r.Put("/", s.handlePutStock)
			})
		}
	})

	return r
}

func actorFrom(r *http.Request) string {
	return r.Header.Get(headerActor)
}
