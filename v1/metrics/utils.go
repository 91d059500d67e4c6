package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is the registration surface of *Metrics for components
// that add their own collectors next to the database ones. Everything
// registered through it carries the service label.
type MetricsCollector interface {
	CreateCounter(name, help string, labels []string) *prometheus.CounterVec
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}

var _ MetricsCollector = (*Metrics)(nil)

// CreateCounter creates a new CounterVec metric and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	return mustRegister(m.registerer, createCounterVec(name, help, labels))
}

// CreateHistogram creates a new HistogramVec metric and registers it.
// Nil buckets use prometheus.DefBuckets.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return mustRegister(m.registerer, createHistogramVec(name, help, labels, buckets))
}

// CreateGauge creates a new GaugeVec metric and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return mustRegister(m.registerer, createGaugeVec(name, help, labels))
}

func mustRegister[C prometheus.Collector](r prometheus.Registerer, c C) C {
	r.MustRegister(c)
	return c
}

func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
}

func createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}
