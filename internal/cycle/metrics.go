package cycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность полного цикла Plan→Act→React→Reflect
	CycleDuration *prometheus.HistogramVec

	// Traffic: кол-во запущенных циклов по статусу завершения
	CyclesTotal *prometheus.CounterVec

	// Действия: executed / blocked по категориям
	ActionsTotal *prometheus.CounterVec

	// Превышения почасового лимита
	RateLimitBreaches *prometheus.CounterVec

	// Длительность sandbox-шаблонов
	SandboxDuration *prometheus.HistogramVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		CycleDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tacore_cycle_duration_seconds",
			Help:    "Histogram of full cycle latencies.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"tenant_id", "status"}),

		CyclesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tacore_cycles_total",
			Help: "Total number of cycles by completion status.",
		}, []string{"status"}), // статусы: completed, failed, skipped

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tacore_actions_total",
			Help: "Total number of planned actions by outcome.",
		}, []string{"category", "outcome"}),

		RateLimitBreaches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tacore_rate_limit_breaches_total",
			Help: "Total number of hourly rate limit breaches.",
		}, []string{"tenant_id", "category"}),

		SandboxDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tacore_sandbox_duration_seconds",
			Help:    "Histogram of sandbox template execution latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"template", "status"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "tacore_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
