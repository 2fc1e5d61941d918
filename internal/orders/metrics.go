package orders

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Accepted      prometheus.Counter
	Replayed      prometheus.Counter
	Notifications *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_accepted_total",
			Help: "Orders accepted and assigned an ID",
		}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_replayed_total",
			Help: "Order submissions answered from the idempotency ledger",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Order relay attempts by sink and result",
		}, []string{"sink", "result"}),
	}
	reg.MustRegister(m.Accepted, m.Replayed, m.Notifications)
	return m
}

func (m *Metrics) accepted() {
	if m != nil {
		m.Accepted.Inc()
	}
}

func (m *Metrics) replayed() {
	if m != nil {
		m.Replayed.Inc()
	}
}

func (m *Metrics) notified(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(sink, result).Inc()
}
