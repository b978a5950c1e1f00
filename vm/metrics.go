package vm

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "counter_vm"

// Execution outcomes.
const (
	outcomeSuccess = "success"
	outcomeRevert  = "revert"
	outcomeError   = "error"
)

type metrics struct {
	executions    *prometheus.CounterVec
	reverts       *prometheus.CounterVec
	executionTime prometheus.Histogram
	commits       prometheus.Counter
	writes        prometheus.Counter
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "executions",
			Help:      "number of executions by request kind and outcome",
		}, []string{"kind", "outcome"}),
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reverts",
			Help:      "number of reverted executions by api error code",
		}, []string{"code"}),
		executionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "execution_seconds",
			Help:      "time spent executing requests",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commits",
			Help:      "number of effect sets applied to global state",
		}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "writes",
			Help:      "number of values written to global state",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.executions,
		m.reverts,
		m.executionTime,
		m.commits,
		m.writes,
	} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(kind RequestKind, result *ExecutionResult) {
	outcome := outcomeSuccess
	if code, ok := result.ApiError(); ok {
		outcome = outcomeRevert
		m.reverts.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
	} else if result.Err != nil {
		outcome = outcomeError
	}
	m.executions.WithLabelValues(kind.String(), outcome).Inc()
	m.executionTime.Observe(result.Elapsed.Seconds())
}
