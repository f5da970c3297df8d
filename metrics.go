package client

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded on crudy_requests_total.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport"
	OutcomeStatus    = "status"
	OutcomeParse     = "parse"
	OutcomeEnvelope  = "envelope"
)

// Metrics holds the collectors a [Client] records its attempts on. A nil
// *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudy_requests_total",
				Help: "Total number of request attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crudy_request_duration_seconds",
				Help:    "Request attempt latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crudy_retries_total",
				Help: "Total number of requests re-issued after recovery",
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) observe(method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, Outcome(err)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) retried(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}

// Outcome classifies a call result into one of the Outcome* labels.
func Outcome(err error) string {
	var (
		envErr    *EnvelopeError
		statusErr *StatusError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &envErr):
		return OutcomeEnvelope
	case errors.As(err, &statusErr):
		return OutcomeStatus
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return OutcomeParse
	default:
		return OutcomeTransport
	}
}
