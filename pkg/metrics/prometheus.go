package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - контейнер метрик запуска солвера. Все метрики регистрируются
// в собственном реестре, чтобы пакетный процесс мог выгрузить их в файл.
type Metrics struct {
	Registry *prometheus.Registry

	SolveRunsTotal    *prometheus.CounterVec
	SolveDuration     prometheus.Histogram
	PathSearchesTotal prometheus.Counter
	CacheLookupsTotal *prometheus.CounterVec

	// Последний запуск
	Deliveries      prometheus.Gauge
	FulfillmentRate prometheus.Gauge
	BalanceScore    prometheus.Gauge
	TotalDistanceKm prometheus.Gauge
	DatasetSize     *prometheus.GaugeVec

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics создаёт метрики в новом реестре и делает их метриками по умолчанию
func InitMetrics(namespace, subsystem string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,

		SolveRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of solve runs",
			},
			[]string{"status"},
		),

		SolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Duration of solve runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
		),

		PathSearchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "path_searches_total",
				Help:      "Total number of range-constrained path searches",
			},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_lookups_total",
				Help:      "Solution cache lookups",
			},
			[]string{"result"},
		),

		Deliveries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "deliveries",
				Help:      "Deliveries committed by the last run",
			},
		),

		FulfillmentRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fulfillment_rate",
				Help:      "Share of demand fulfilled by the last run",
			},
		),

		BalanceScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "warehouse_balance_score",
				Help:      "Min/max warehouse usage ratio of the last run",
			},
		),

		TotalDistanceKm: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "total_distance_km",
				Help:      "Total distance of the last run",
			},
		),

		DatasetSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dataset_records",
				Help:      "Number of records in the loaded dataset",
			},
			[]string{"table"},
		),

		ServiceInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	reg.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("cvrp", "solver")
	}
	return defaultMetrics
}

// RunResult - итог запуска для записи в метрики
type RunResult struct {
	Deliveries      int
	FulfillmentRate float64
	BalanceScore    float64
	TotalDistanceKm float64
	PathSearches    int64
}

// RecordRun записывает метрики успешного запуска
func (m *Metrics) RecordRun(duration time.Duration, r RunResult) {
	m.SolveRunsTotal.WithLabelValues("success").Inc()
	m.SolveDuration.Observe(duration.Seconds())
	m.PathSearchesTotal.Add(float64(r.PathSearches))

	m.Deliveries.Set(float64(r.Deliveries))
	m.FulfillmentRate.Set(r.FulfillmentRate)
	m.BalanceScore.Set(r.BalanceScore)
	m.TotalDistanceKm.Set(r.TotalDistanceKm)
}

// RecordFailure отмечает неуспешный запуск
func (m *Metrics) RecordFailure(duration time.Duration) {
	m.SolveRunsTotal.WithLabelValues("error").Inc()
	m.SolveDuration.Observe(duration.Seconds())
}

// RecordCacheLookup отмечает попадание или промах кэша решений
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordDatasetSize записывает размеры таблиц набора данных
func (m *Metrics) RecordDatasetSize(sizes map[string]int) {
	for table, n := range sizes {
		m.DatasetSize.WithLabelValues(table).Set(float64(n))
	}
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// WriteTextfile выгружает метрики в формате textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
