package client

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/damianoneill/ncclient/netconf/common"
)

// Outcome label values recorded by the metrics hooks.
const (
	OutcomeOk       = "ok"
	OutcomeRPCError = "rpc-error"
	OutcomeError    = "error"
)

// Metrics holds the collectors updated by the hooks returned from NewMetricsHooks.
type Metrics struct {
	RPCs         *prometheus.CounterVec
	RPCDuration  *prometheus.HistogramVec
	Connects     *prometheus.CounterVec
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
}

// NewMetricsHooks registers netconf client collectors with reg and returns trace hooks that update them.
// Hooks not related to metrics log errors through DefaultLoggingHooks.
func NewMetricsHooks(reg prometheus.Registerer) (*ClientTrace, *Metrics, error) {
	m := &Metrics{
		RPCs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netconf",
			Subsystem: "client",
			Name:      "rpc_total",
			Help:      "Number of rpc requests executed, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netconf",
			Subsystem: "client",
			Name:      "rpc_duration_seconds",
			Help:      "Time taken to execute rpc requests, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netconf",
			Subsystem: "client",
			Name:      "connect_total",
			Help:      "Number of session establishment attempts, by outcome.",
		}, []string{"outcome"}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netconf",
			Subsystem: "client",
			Name:      "read_bytes_total",
			Help:      "Bytes read from netconf transports.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netconf",
			Subsystem: "client",
			Name:      "written_bytes_total",
			Help:      "Bytes written to netconf transports.",
		}),
	}
	for _, c := range []prometheus.Collector{m.RPCs, m.RPCDuration, m.Connects, m.BytesRead, m.BytesWritten} {
		if err := reg.Register(c); err != nil {
			return nil, nil, errors.Wrap(err, "failed to register netconf client metrics")
		}
	}

	trace := &ClientTrace{
		ConnectDone: func(target string, err error, d time.Duration) {
			m.Connects.WithLabelValues(outcome(err)).Inc()
		},
		ReadDone: func(p []byte, c int, err error, d time.Duration) {
			m.BytesRead.Add(float64(c))
		},
		WriteDone: func(p []byte, c int, err error, d time.Duration) {
			m.BytesWritten.Add(float64(c))
		},
		ExecuteDone: func(req common.Request, messageID uint32, res *common.RPCReply, err error, d time.Duration) {
			op := string(common.OperationOf(req))
			m.RPCs.WithLabelValues(op, outcome(err)).Inc()
			m.RPCDuration.WithLabelValues(op).Observe(d.Seconds())
		},
		Error: DefaultLoggingHooks.Error,
	}
	return trace, m, nil
}

func outcome(err error) string {
	var rpcErrs *common.RPCErrors
	switch {
	case err == nil:
		return OutcomeOk
	case errors.As(err, &rpcErrs):
		return OutcomeRPCError
	default:
		return OutcomeError
	}
}
