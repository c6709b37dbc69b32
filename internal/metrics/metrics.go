// Package metrics instruments the simulator with Prometheus counters and
// gauges. Grounded on the pack's prometheus exporter shape
// (sureshkrishnan-v-kubePulse's internal/export/prometheus.go: one
// constructor registering every metric, plain Inc/Observe calls from
// call sites), but registered directly against client_golang rather than
// promauto so a nil *Collector is a valid, inert no-op — simulations run
// without wiring a registry at all.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every metric the simulator exposes. Every method is
// nil-receiver-safe, so callers need not special-case "no registry
// configured" at every call site.
type Collector struct {
	collisionsTotal     prometheus.Counter
	packetsDroppedTotal *prometheus.CounterVec
	answerTimeoutsTotal prometheus.Counter
	readdressSwapsTotal prometheus.Counter
	pendingAnswers      prometheus.Gauge
}

// NewCollector registers every metric against reg and returns the
// collector. Pass a prometheus.NewRegistry() in tests to avoid the
// global default registry's "duplicate registration" panic across runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		collisionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rethundersim_collisions_total",
			Help: "Total bus collisions synthesized.",
		}),
		packetsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rethundersim_packets_dropped_total",
			Help: "Total packets dropped at the protocol layer, by reason.",
		}, []string{"reason"}),
		answerTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rethundersim_answer_timeouts_total",
			Help: "Total master answer-wait timeouts.",
		}),
		readdressSwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rethundersim_readdress_swaps_total",
			Help: "Total logic-address swaps performed by re-addressing.",
		}),
		pendingAnswers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rethundersim_pending_answers",
			Help: "Whether the master currently has an answer outstanding (0 or 1).",
		}),
	}

	reg.MustRegister(
		c.collisionsTotal,
		c.packetsDroppedTotal,
		c.answerTimeoutsTotal,
		c.readdressSwapsTotal,
		c.pendingAnswers,
	)

	return c
}

// IncCollisions records one synthesized bus collision.
func (c *Collector) IncCollisions() {
	if c == nil {
		return
	}
	c.collisionsTotal.Inc()
}

// IncPacketsDropped records one packet dropped for reason.
func (c *Collector) IncPacketsDropped(reason string) {
	if c == nil {
		return
	}
	c.packetsDroppedTotal.WithLabelValues(reason).Inc()
}

// IncAnswerTimeouts records one master answer-wait timeout.
func (c *Collector) IncAnswerTimeouts() {
	if c == nil {
		return
	}
	c.answerTimeoutsTotal.Inc()
}

// AddReaddressSwaps records n logic-address swaps performed in one
// re-addressing pass.
func (c *Collector) AddReaddressSwaps(n int) {
	if c == nil {
		return
	}
	c.readdressSwapsTotal.Add(float64(n))
}

// SetPendingAnswers records whether the master currently has an
// outstanding answer (1) or not (0).
func (c *Collector) SetPendingAnswers(pending bool) {
	if c == nil {
		return
	}
	if pending {
		c.pendingAnswers.Set(1)
	} else {
		c.pendingAnswers.Set(0)
	}
}
