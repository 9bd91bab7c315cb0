// Package metrics exposes Prometheus counters for the core operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/instalitre/internal/apperror"
)

const namespace = "instalitre"

type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	posts         *prometheus.CounterVec
	listRetries   prometheus.Counter
	imageBytes    prometheus.Histogram
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_published_total",
			Help:      "Publish attempts by result.",
		}, []string{"result"}),
		listRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_posts_retries_total",
			Help:      "Retries of post listing after the store was unavailable.",
		}),
		imageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "canonical_image_bytes",
			Help:      "Size of stored PNG images.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.registrations,
		m.logins,
		m.posts,
		m.listRetries,
		m.imageBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registration(err error) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) Login(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) Publish(err error, pngBytes int) {
	if m == nil {
		return
	}
	m.posts.WithLabelValues(Result(err)).Inc()
	if err == nil {
		m.imageBytes.Observe(float64(pngBytes))
	}
}

func (m *Metrics) ListRetry() {
	if m == nil {
		return
	}
	m.listRetries.Inc()
}

// Result maps an operation outcome to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, apperror.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperror.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, apperror.ErrEmptyCaption):
		return "empty_caption"
	case errors.Is(err, apperror.ErrImageDecode):
		return "invalid_image"
	case errors.Is(err, apperror.ErrValidation):
		return "invalid"
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
