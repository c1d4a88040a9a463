package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess   = "success"
	outcomeTransient = "transient"
	outcomeError     = "error"
)

// Metrics counts gateway calls. A nil *Metrics is valid and records nothing.
type Metrics struct {
	calls   *prometheus.CounterVec
	retries *prometheus.CounterVec
}

// NewMetrics creates the gateway counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tonwallet",
				Name:      "rpc_calls_total",
				Help:      "RPC attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tonwallet",
				Name:      "rpc_retries_total",
				Help:      "RPC backoff waits by method",
			},
			[]string{"method"},
		),
	}

	if reg != nil {
		if err := reg.Register(m.calls); err != nil {
			return nil, err
		}
		if err := reg.Register(m.retries); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(method string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case IsTransient(err):
		outcome = outcomeTransient
	default:
		outcome = outcomeError
	}
	m.calls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) retried(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}
