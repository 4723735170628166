package stream

import (
	"github.com/prometheus/client_golang/prometheus"

	docsearch "github.com/haowjy/docsearch-go"
)

// Stream outcomes recorded by Metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// Metrics counts stream activity. A nil *Metrics records nothing.
type Metrics struct {
	Started   prometheus.Counter
	Outcomes  *prometheus.CounterVec
	Events    *prometheus.CounterVec
	Malformed prometheus.Counter
}

// NewMetrics creates the stream collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsearch_stream_started_total",
			Help: "Total number of streaming answers started",
		}),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_stream_outcomes_total",
				Help: "Streaming answers by terminal outcome",
			},
			[]string{"outcome"}, // completed/aborted/failed
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsearch_stream_events_total",
				Help: "Stream events folded into answer state, by type",
			},
			[]string{"type"},
		),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsearch_stream_malformed_events_total",
			Help: "Stream lines skipped because their payload could not be parsed",
		}),
	}

	for _, c := range []prometheus.Collector{m.Started, m.Outcomes, m.Events, m.Malformed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) started() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) outcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) event(t docsearch.EventType) {
	if m != nil {
		m.Events.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) malformed(n int) {
	if m != nil && n > 0 {
		m.Malformed.Add(float64(n))
	}
}
