// Package breaker реализует circuit breaker для защиты от медленных или
// недоступных внешних коллабораторов: длительный сбой снаружи превращается
// в быстрый локальный отказ вместо блокировки обработчиков запросов.
package breaker

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrOpen возвращается без вызова обёрнутой функции, пока breaker открыт.
var ErrOpen = errors.New("circuit breaker is open")

// State — состояние breaker-а.
type State int

const (
	// StateClosed — вызовы проходят, считаются подряд идущие ошибки.
	StateClosed State = iota
	// StateOpen — вызовы отклоняются сразу, без обращения наружу.
	StateOpen
	// StateHalfOpen — после cooldown разрешён ровно один пробный вызов.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker — потокобезопасный circuit breaker с тремя состояниями.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	logger      *log.Entry

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trialInWork bool
}

// New создаёт breaker: после maxFailures подряд идущих ошибок он открывается,
// после cooldown допускает один пробный вызов.
func New(maxFailures int, cooldown time.Duration, logger *log.Entry) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger,
		state:       StateClosed,
	}
}

// State возвращает текущее состояние breaker-а.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do выполняет fn через breaker. В открытом состоянии возвращает ErrOpen,
// не вызывая fn; в half-open наружу допускается только один вызов.
func (b *Breaker) Do(operation string, fn func() error) error {
	if err := b.before(operation); err != nil {
		return err
	}

	err := fn()
	b.after(operation, err)
	return err
}

func (b *Breaker) before(operation string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.trialInWork = true
		b.logger.WithField("operation", operation).Info("circuit breaker half-open, allowing trial call")
		return nil
	case StateHalfOpen:
		// Пробный вызов уже в полёте — остальные ждут его исхода.
		if b.trialInWork {
			return ErrOpen
		}
		b.trialInWork = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInWork = false
		if err != nil {
			b.state = StateOpen
			b.lastFailure = time.Now()
			b.logger.WithField("operation", operation).Warn("trial call failed, circuit breaker re-opened")
			return
		}
		b.state = StateClosed
		b.failures = 0
		b.logger.WithField("operation", operation).Info("trial call succeeded, circuit breaker closed")
		return
	}

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.failures >= b.maxFailures && b.state == StateClosed {
			b.state = StateOpen
			b.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  b.failures,
			}).Warn("circuit breaker opened")
		}
		return
	}

	b.failures = 0
}
