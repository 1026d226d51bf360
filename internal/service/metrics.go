package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the domain counters of the analysis service.
type Metrics struct {
	saved *prometheus.CounterVec
}

// NewMetrics creates and registers the analysis counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		saved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyses_saved_total",
				Help: "Total number of analyses saved, by chart type.",
			},
			[]string{"chart_type"},
		),
	}
	if err := reg.Register(m.saved); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) incSaved(t string) {
	if m == nil {
		return
	}
	m.saved.WithLabelValues(t).Inc()
}
