package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics содержит метрики воркера расчёта возмещений.
type SettlementMetrics struct {
	// Счётчик заданий по итогу обработки.
	jobsTotal *prometheus.CounterVec

	// Гистограмма времени обработки задания.
	jobDuration prometheus.Histogram

	// Счётчик отказов по занятой блокировке.
	lockContention prometheus.Counter

	// Счётчик заданий, пропущенных по идемпотентности.
	duplicateSkips prometheus.Counter

	// Gauge активных заданий.
	activeJobs prometheus.Gauge
}

// NewSettlementMetrics создаёт метрики воркера в default registerer.
func NewSettlementMetrics() *SettlementMetrics {
	return newSettlementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSettlementMetricsWithRegisterer(registerer prometheus.Registerer) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SettlementMetrics{
		jobsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fms_settlement_jobs_total",
			Help: "Total number of settlement jobs processed grouped by result",
		}, []string{"result"}),
		jobDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fms_settlement_job_duration_seconds",
			Help:    "Duration of settlement job processing in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		lockContention: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_settlement_lock_contention_total",
			Help: "Total number of settlement jobs deferred due to lock contention",
		}),
		duplicateSkips: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fms_settlement_duplicate_skips_total",
			Help: "Total number of settlement jobs skipped because the refund was already recorded",
		}),
		activeJobs: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "fms_settlement_active_jobs",
			Help: "Number of settlement jobs currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordJobResult увеличивает счётчик заданий с меткой итога.
func (m *SettlementMetrics) RecordJobResult(result string) {
	m.jobsTotal.WithLabelValues(result).Inc()
}

// RecordJobDuration записывает время обработки задания.
func (m *SettlementMetrics) RecordJobDuration(duration time.Duration) {
	m.jobDuration.Observe(duration.Seconds())
}

// RecordLockContention увеличивает счётчик отказов по блокировке.
func (m *SettlementMetrics) RecordLockContention() {
	m.lockContention.Inc()
}

// RecordDuplicateSkip увеличивает счётчик пропусков по идемпотентности.
func (m *SettlementMetrics) RecordDuplicateSkip() {
	m.duplicateSkips.Inc()
}

// RecordJobStarted увеличивает количество активных заданий.
func (m *SettlementMetrics) RecordJobStarted() {
	m.activeJobs.Inc()
}

// RecordJobFinished уменьшает количество активных заданий.
func (m *SettlementMetrics) RecordJobFinished() {
	m.activeJobs.Dec()
}
