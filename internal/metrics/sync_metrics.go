package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// исходы получения деталей заказа
const (
	FetchOK       = "ok"
	FetchDegraded = "degraded"
)

// SyncMetrics содержит метрики синхронизации заказов
// методы безопасно вызывать на nil
type SyncMetrics struct {
	syncRuns      *prometheus.CounterVec
	syncDuration  prometheus.Histogram
	detailFetches *prometheus.CounterVec
	snapshotSize  prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewSyncMetrics регистрирует метрики в DefaultRegisterer
func NewSyncMetrics() *SyncMetrics {
	return NewSyncMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSyncMetricsWithRegisterer регистрирует метрики в указанном реестре
func NewSyncMetricsWithRegisterer(registerer prometheus.Registerer) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SyncMetrics{
		syncRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_sync_runs_total",
			Help: "Total number of order sync runs by trigger and status",
		}, []string{"trigger", "status"}),
		syncDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_sync_duration_seconds",
			Help:    "Duration of order sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		detailFetches: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_detail_fetches_total",
			Help: "Total number of order detail fetches by outcome",
		}, []string{"outcome"}),
		snapshotSize: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_snapshot_size",
			Help: "Number of orders in the last written snapshot",
		}),
		lastSuccess: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful order sync",
		}),
	}
}

// RecordRun записывает итог запуска синхронизации
func (m *SyncMetrics) RecordRun(trigger, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(trigger, status).Inc()
	m.syncDuration.Observe(duration.Seconds())
}

// RecordDetailFetch записывает исход получения деталей одного заказа
func (m *SyncMetrics) RecordDetailFetch(outcome string) {
	if m == nil {
		return
	}
	m.detailFetches.WithLabelValues(outcome).Inc()
}

// RecordSnapshot записывает размер сохранённого снапшота
func (m *SyncMetrics) RecordSnapshot(size int, at time.Time) {
	if m == nil {
		return
	}
	m.snapshotSize.Set(float64(size))
	m.lastSuccess.Set(float64(at.Unix()))
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
