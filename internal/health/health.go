// Package health отдаёт состояние зависимостей сервиса для оркестратора:
// /healthz с деталями по компонентам, /livez и /readyz как probe-ы.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status — состояние компонента или сервиса в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check — результат одной проверки зависимости.
type Check struct {
	Component string `json:"component"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report — агрегированный ответ /healthz.
type Report struct {
	Status        Status           `json:"status"`
	Service       string           `json:"service"`
	Build         string           `json:"build,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Components    map[string]Check `json:"components,omitempty"`
}

// Checker проверяет одну зависимость. Реализация обязана уважать отмену ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler собирает зарегистрированные проверки и обслуживает /healthz и /readyz.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	service   string
	build     string
	startTime time.Time
}

// NewHandler создаёт handler. service попадает в поле service ответа,
// build — строка сборки из пакета version.
func NewHandler(service, build string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		service:   service,
		build:     build,
		startTime: time.Now(),
	}
}

// Register добавляет проверку зависимости под именем name.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) snapshot() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	return checkers
}

// ServeHTTP выполняет все проверки и возвращает агрегированный отчёт.
// Любой unhealthy компонент опускает общий статус и код ответа до 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]Check)
	overall := StatusHealthy

	for name, checker := range h.snapshot() {
		check := checker.Check(r.Context())
		components[name] = check

		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	report := Report{
		Status:        overall,
		Service:       h.service,
		Build:         h.build,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    components,
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// LivenessHandler отвечает 200 пока процесс жив. Зависимости не трогает:
// падение Postgres не повод рестартовать контейнер.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler отвечает 200, когда все зависимости доступны. Degraded
// считается готовым: сервис обслуживает запросы, пусть и медленнее.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, checker := range h.snapshot() {
		if check := checker.Check(r.Context()); check.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// PingFunc проверяет доступность зависимости, например (*postgres.Store).Ping.
type PingFunc func(ctx context.Context) error

// PingChecker оборачивает ping-функцию зависимости в Checker с таймаутом.
type PingChecker struct {
	component string
	timeout   time.Duration
	ping      PingFunc
}

// NewPingChecker создаёт проверку. timeout ограничивает каждый вызов ping.
func NewPingChecker(component string, timeout time.Duration, ping PingFunc) *PingChecker {
	return &PingChecker{
		component: component,
		timeout:   timeout,
		ping:      ping,
	}
}

// Check выполняет ping и переводит результат в Check.
func (c *PingChecker) Check(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Check{
			Component: c.component,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			LatencyMs: latency,
		}
	}

	return Check{
		Component: c.component,
		Status:    StatusHealthy,
		LatencyMs: latency,
	}
}
