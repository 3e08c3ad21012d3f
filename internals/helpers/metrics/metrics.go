// file: internals/helpers/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IssuanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "srms",
		Name:      "issuance_total",
		Help:      "Issuance attempts by outcome.",
	}, []string{"outcome"})

	VerificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "srms",
		Name:      "verification_total",
		Help:      "Verification lookups by result.",
	}, []string{"result"})

	LedgerWriteSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "srms",
		Name:      "ledger_write_seconds",
		Help:      "Latency of ledger attestation writes.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	OrphansReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "srms",
		Name:      "orphans_reaped_total",
		Help:      "Orphaned objects removed by the reaper.",
	})
)

// Issuance outcomes
const (
	OutcomeIssued            = "issued"
	OutcomeConflict          = "conflict"
	OutcomeInvalid           = "invalid"
	OutcomeLedgerUnavailable = "ledger_unavailable"
	OutcomeError             = "error"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
