package mvcc

import "github.com/prometheus/client_golang/prometheus"

// Counter kinds reported by the status resolver.
const (
	CounterRollback            = "rollback"
	CounterPessimisticRollback = "pessimistic_rollback"
	CounterUpdateTs            = "update_ts"
	CounterGetCommitInfo       = "get_commit_info"
)

// CounterSink receives occurrence counts of resolver decisions. It is
// observability-only state with no correctness role, injected so the resolver
// stays a pure function of its explicit inputs.
type CounterSink interface {
	Inc(kind string)
}

type nopSink struct{}

func (nopSink) Inc(string) {}

// NopCounterSink discards all counts.
var NopCounterSink CounterSink = nopSink{}

// PrometheusSink counts resolver decisions into a CounterVec labelled by
// decision kind.
type PrometheusSink struct {
	vec *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mistkv",
			Subsystem: "txn",
			Name:      "check_txn_status_total",
			Help:      "Counter of check_txn_status resolver decisions.",
		}, []string{"type"})
	reg.MustRegister(vec)
	return &PrometheusSink{vec: vec}
}

func (s *PrometheusSink) Inc(kind string) {
	s.vec.WithLabelValues(kind).Inc()
}
