package export

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts export requests by outcome and entries by result.
// A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	entries  *prometheus.CounterVec
}

// NewMetrics creates the export counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_requests_total",
				Help: "Bulk export requests by outcome.",
			},
			[]string{"outcome"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_entries_total",
				Help: "Bulk export entries by result (archived, skipped, denied).",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.entries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) entry(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.entries.WithLabelValues(result).Add(float64(n))
}
