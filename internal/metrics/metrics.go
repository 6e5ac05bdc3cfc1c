// Package metrics 提供 haullog 的 prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "haullog"

// Metrics 持有独立的 registry，避免与全局默认 registry 冲突。
// 所有方法在接收者为 nil 时为空操作。
type Metrics struct {
	registry *prometheus.Registry

	populationRuns     *prometheus.CounterVec
	populationDuration prometheus.Histogram
	factsLoaded        prometheus.Counter
	factsSkipped       prometheus.Counter
	dimensionsCreated  *prometheus.CounterVec
	operationsCreated  prometheus.Counter
}

// PopulationResult 是一次仓库填充运行对外暴露的统计。
type PopulationResult struct {
	Status            string
	Duration          time.Duration
	Loaded            int
	Skipped           int
	DimensionsCreated map[string]int
}

// New 创建并注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		populationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "population_runs_total",
			Help:      "Warehouse population runs by final status.",
		}, []string{"status"}),
		populationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "population_duration_seconds",
			Help:      "Wall time of warehouse population runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		factsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_loaded_total",
			Help:      "Fact rows inserted into fact_operations.",
		}),
		factsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_skipped_total",
			Help:      "Operational records skipped because a fact row already existed.",
		}),
		dimensionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dimension_rows_created_total",
			Help:      "Dimension rows created by the resolver.",
		}, []string{"dimension"}),
		operationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_created_total",
			Help:      "Daily operation records accepted.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.populationRuns,
		m.populationDuration,
		m.factsLoaded,
		m.factsSkipped,
		m.dimensionsCreated,
		m.operationsCreated,
	)
	return m
}

// Registry 便于测试直接读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 使用的 http.Handler。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePopulation 记录一次填充运行。
func (m *Metrics) ObservePopulation(result PopulationResult) {
	if m == nil {
		return
	}
	m.populationRuns.WithLabelValues(result.Status).Inc()
	m.populationDuration.Observe(result.Duration.Seconds())
	if result.Loaded > 0 {
		m.factsLoaded.Add(float64(result.Loaded))
	}
	if result.Skipped > 0 {
		m.factsSkipped.Add(float64(result.Skipped))
	}
	for dimension, n := range result.DimensionsCreated {
		if n > 0 {
			m.dimensionsCreated.WithLabelValues(dimension).Add(float64(n))
		}
	}
}

// OperationCreated 在新增一条日常作业记录后调用。
func (m *Metrics) OperationCreated() {
	if m == nil {
		return
	}
	m.operationsCreated.Inc()
}
