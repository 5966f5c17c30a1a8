// Package metrics exposes Prometheus collectors for the lottery ledger.
package metrics

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the lottery collectors.
	Registry = prometheus.NewRegistry()

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "secret_lotto",
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Total number of tickets bought.",
		},
	)

	reveals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "secret_lotto",
			Subsystem: "tickets",
			Name:      "revealed_total",
			Help:      "Total number of commitments opened.",
		},
	)

	pool = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "secret_lotto",
			Subsystem: "round",
			Name:      "pool_wei",
			Help:      "Pool of the open round in wei.",
		},
		[]string{"round"},
	)

	draws = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "secret_lotto",
			Subsystem: "draws",
			Name:      "completed_total",
			Help:      "Total number of rounds drawn.",
		},
	)

	paid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secret_lotto",
			Subsystem: "draws",
			Name:      "paid_wei_total",
			Help:      "Value distributed by draws in wei, by share.",
		},
		[]string{"share"},
	)

	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secret_lotto",
			Subsystem: "ops",
			Name:      "failures_total",
			Help:      "Rejected ledger calls by operation and error kind.",
		},
		[]string{"op", "kind"},
	)
)

func init() {
	Registry.MustRegister(
		ticketsSold,
		reveals,
		pool,
		draws,
		paid,
		failures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTicket counts a purchase and updates the open round's pool.
func RecordTicket(roundID uint64, roundPool *big.Int) {
	ticketsSold.Inc()
	SetPool(roundID, roundPool)
}

// RecordReveal counts an opened commitment.
func RecordReveal() {
	reveals.Inc()
}

// SetPool publishes the pool of the open round.
func SetPool(roundID uint64, roundPool *big.Int) {
	v, _ := new(big.Float).SetInt(roundPool).Float64()
	pool.WithLabelValues(strconv.FormatUint(roundID, 10)).Set(v)
}

// RecordDraw counts a completed draw and retires the drawn round's gauge.
func RecordDraw(roundID uint64, prize, fee *big.Int) {
	draws.Inc()
	p, _ := new(big.Float).SetInt(prize).Float64()
	f, _ := new(big.Float).SetInt(fee).Float64()
	paid.WithLabelValues("prize").Add(p)
	paid.WithLabelValues("fee").Add(f)
	pool.DeleteLabelValues(strconv.FormatUint(roundID, 10))
}

// RecordFailure counts a rejected call.
func RecordFailure(op, kind string) {
	if kind == "" {
		kind = "internal"
	}
	failures.WithLabelValues(op, kind).Inc()
}
