// Package metrics exposes Prometheus counters for validation outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account_validators"

var (
	// ValidationsTotal counts validation calls by module, kind and result.
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation calls by module, function kind and result",
		},
		[]string{"module", "kind", "result"}, // result: passed/failed/error
	)

	// QuorumFailuresTotal counts failed quorum checks by reason.
	QuorumFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quorum_failures_total",
			Help:      "Failed multisig quorum checks by reason",
		},
		[]string{"reason"},
	)

	// OwnershipMutationsTotal counts signer transfers and owner set updates.
	OwnershipMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ownership_mutations_total",
			Help:      "Signer transfers and owner set updates by module and result",
		},
		[]string{"module", "result"},
	)

	// ValidationDuration tracks validation latency, dominated by ERC-1271 calls when present.
	ValidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Validation latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"module", "kind"},
	)
)

const (
	ResultPassed = "passed"
	ResultFailed = "failed"
	ResultError  = "error"
)

// RecordValidation increments ValidationsTotal for one outcome.
func RecordValidation(module, kind string, passed bool, err error) {
	result := ResultFailed
	switch {
	case err != nil:
		result = ResultError
	case passed:
		result = ResultPassed
	}
	ValidationsTotal.WithLabelValues(module, kind, result).Inc()
}

// RecordMutation increments OwnershipMutationsTotal.
func RecordMutation(module string, err error) {
	result := ResultPassed
	if err != nil {
		result = ResultError
	}
	OwnershipMutationsTotal.WithLabelValues(module, result).Inc()
}
