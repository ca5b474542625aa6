package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts business events. A nil *DomainMetrics is a no-op so
// services can be built without a registry in tests.
type DomainMetrics struct {
	points   *prometheus.CounterVec
	orders   *prometheus.CounterVec
	payments *prometheus.CounterVec
	waste    *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	points := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmloop_points_operations_total",
		Help: "Reward point ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmloop_order_events_total",
		Help: "Order lifecycle events.",
	}, []string{"event"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmloop_payment_events_total",
		Help: "Payment gateway interactions by outcome.",
	}, []string{"event", "outcome"})
	waste := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farmloop_waste_report_events_total",
		Help: "Waste report lifecycle events.",
	}, []string{"event"})
	reg.MustRegister(points, orders, payments, waste)
	return &DomainMetrics{
		points:   points,
		orders:   orders,
		payments: payments,
		waste:    waste,
	}
}

func (m *DomainMetrics) PointsOperation(operation, outcome string) {
	if m == nil || m.points == nil {
		return
	}
	m.points.WithLabelValues(operation, outcome).Inc()
}

func (m *DomainMetrics) OrderEvent(event string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(event).Inc()
}

func (m *DomainMetrics) PaymentEvent(event, outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(event, outcome).Inc()
}

func (m *DomainMetrics) WasteEvent(event string) {
	if m == nil || m.waste == nil {
		return
	}
	m.waste.WithLabelValues(event).Inc()
}
