package ampyobs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry
}

func NewMetrics() *Metrics {
	return &Metrics{reg: prometheus.NewRegistry()}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// NewCounter registers a counter vector partitioned by labels.
func (m *Metrics) NewCounter(namespace, name, help string, constLabels prometheus.Labels, labels ...string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: constLabels,
	}, labels)
	m.reg.MustRegister(cv)
	return cv
}

func (m *Metrics) NewHistogram(namespace, name, help string, buckets []float64, constLabels prometheus.Labels, labels ...string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: constLabels,
	}, labels)
	m.reg.MustRegister(hv)
	return hv
}

// PropagationMetrics counts B3 header traffic through the HTTP helpers.
type PropagationMetrics struct {
	Injected  *prometheus.CounterVec // labels: encoding
	Extracted *prometheus.CounterVec // labels: encoding, outcome
}

func (m *Metrics) NewPropagationMetrics(namespace string) *PropagationMetrics {
	pm := &PropagationMetrics{
		Injected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "b3_inject_total",
			Help:      "B3 trace contexts written into outgoing requests.",
		}, []string{"encoding"}),
		Extracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "b3_extract_total",
			Help:      "B3 extraction attempts on incoming requests by outcome.",
		}, []string{"encoding", "outcome"}),
	}
	m.reg.MustRegister(pm.Injected, pm.Extracted)
	return pm
}
