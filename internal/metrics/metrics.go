// Package metrics exposes Prometheus instrumentation for the exchange:
// one small struct of related counters and gauges, constructed once at
// startup and registered against a Prometheus registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector groups the counters and gauges the exchange records.
// Instrumentation is optional observability: a nil *Collector means
// matching proceeds identically, just unmeasured.
type Collector struct {
	OrdersAdded           prometheus.Counter
	OrdersCancelled       prometheus.Counter
	OrdersRejected        *prometheus.CounterVec
	MatchesExecuted       prometheus.Counter
	InstrumentsRegistered prometheus.Counter
	RestingOrders         *prometheus.GaugeVec
}

// New registers the collector's metrics against reg and returns it.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		OrdersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "orders_added_total",
			Help:      "Orders that rested on a book after matching.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "orders_cancelled_total",
			Help:      "Resting orders removed via delete.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected at enqueue, labeled by error.",
		}, []string{"reason"}),
		MatchesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "matches_executed_total",
			Help:      "Execution events of kind MATCH emitted.",
		}),
		InstrumentsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "instruments_registered_total",
			Help:      "Instruments registered over the exchange's lifetime.",
		}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledgerline",
			Name:      "resting_orders",
			Help:      "Current resting order count per instrument.",
		}, []string{"ticker"}),
	}

	reg.MustRegister(
		c.OrdersAdded,
		c.OrdersCancelled,
		c.OrdersRejected,
		c.MatchesExecuted,
		c.InstrumentsRegistered,
		c.RestingOrders,
	)
	return c
}
