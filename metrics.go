package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "orderbook"

// Metrics exposes order book activity to Prometheus.
// A single Metrics can be shared by several books; series are labelled by market.
type Metrics struct {
	ordersAdded    *prometheus.CounterVec
	ordersCanceled *prometheus.CounterVec
	ordersExecuted *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	restingOrders  *prometheus.GaugeVec
	priceLevels    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ordersAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_added_total",
			Help:      "Orders accepted into the book.",
		}, []string{"market"}),
		ordersCanceled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_canceled_total",
			Help:      "Orders removed by cancellation.",
		}, []string{"market"}),
		ordersExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_executed_total",
			Help:      "Executions applied to resting orders.",
		}, []string{"market", "fill"}),
		ordersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_rejected_total",
			Help:      "Operations rejected by the book.",
		}, []string{"market", "reason"}),
		restingOrders: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resting_orders",
			Help:      "Orders currently resting in the book.",
		}, []string{"market", "side"}),
		priceLevels: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "price_levels",
			Help:      "Distinct price levels currently in the book.",
		}, []string{"market", "side"}),
	}
}

const (
	fillFull    = "full"
	fillPartial = "partial"

	rejectDuplicateID  = "duplicate_id"
	rejectNotFound     = "not_found"
	rejectInvalidParam = "invalid_param"
)

func (m *Metrics) orderAdded(market string) {
	if m == nil {
		return
	}
	m.ordersAdded.WithLabelValues(market).Inc()
}

func (m *Metrics) orderCanceled(market string) {
	if m == nil {
		return
	}
	m.ordersCanceled.WithLabelValues(market).Inc()
}

func (m *Metrics) orderExecuted(market, fill string) {
	if m == nil {
		return
	}
	m.ordersExecuted.WithLabelValues(market, fill).Inc()
}

func (m *Metrics) orderRejected(market, reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(market, reason).Inc()
}

func (m *Metrics) setSide(market string, side Side, orders int64, levels int32) {
	if m == nil {
		return
	}
	m.restingOrders.WithLabelValues(market, side.String()).Set(float64(orders))
	m.priceLevels.WithLabelValues(market, side.String()).Set(float64(levels))
}
