package auth

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	autherrors "github.com/alimurtadho/authcore/pkg/errors"
)

// MetricsOptions configures the authentication metrics.
type MetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
}

// Metrics exposes Prometheus collectors for authentication outcomes.
type Metrics struct {
	Operations *prometheus.CounterVec
	Lockouts   prometheus.Counter
}

// NewMetrics constructs the collectors and registers them with the provided
// registerer. Collectors that are already registered are reused.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "authcore"
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "auth"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operations_total",
		Help:      "Total number of authentication operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	if err := reg.Register(operations); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				operations = existing
			} else {
				return nil, fmt.Errorf("existing operations collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register operations collector: %w", err)
		}
	}

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "lockouts_total",
		Help:      "Total number of accounts locked after repeated failed logins.",
	})

	if err := reg.Register(lockouts); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				lockouts = existing
			} else {
				return nil, fmt.Errorf("existing lockouts collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register lockouts collector: %w", err)
		}
	}

	return &Metrics{Operations: operations, Lockouts: lockouts}, nil
}

// observe counts one operation. A nil Metrics is a no-op.
func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) lockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(autherrors.GetCode(err)))
}
