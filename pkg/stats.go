package coincidence

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "coincidence"

// Statistics holds the diagnostic counters of a reconstruction run. The
// counters are safe for concurrent use by the workers.
type Statistics struct {
	registry *prometheus.Registry

	WindowsProcessed     prometheus.Counter
	WindowsFailed        prometheus.Counter
	MalformedRecords     prometheus.Counter
	UnknownChannels      prometheus.Counter
	TriggerRecords       prometheus.Counter
	SentinelEdges        prometheus.Counter
	CorruptedEdges       prometheus.Counter
	DiscardedPairs       prometheus.Counter
	UnattachedThresholds prometheus.Counter
	RawSignals           prometheus.Counter
	MatrixSignals        prometheus.Counter
	Hits                 prometheus.Counter
	DummyHits            prometheus.Counter
	UnmatchedSignals     prometheus.Counter
	Events               prometheus.Counter
	ScatterRemovals      prometheus.Counter
	AcceptedLORs         prometheus.Counter
	RejectedLORs         prometheus.Counter
	Triples              *prometheus.CounterVec
}

func NewStatistics() *Statistics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	counter := func(subsystem, name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Statistics{
		registry:             reg,
		WindowsProcessed:     counter("windows", "processed_total", "Time windows processed"),
		WindowsFailed:        counter("windows", "failed_total", "Time windows degraded after a failure"),
		MalformedRecords:     counter("input", "malformed_records_total", "Input records skipped as malformed"),
		UnknownChannels:      counter("input", "unknown_channel_records_total", "Input records on channels missing from the setup"),
		TriggerRecords:       counter("input", "trigger_records_total", "Input records dropped from trigger channels"),
		SentinelEdges:        counter("signals", "sentinel_edges_total", "Threshold pairs dropped for carrying the no-signal value"),
		CorruptedEdges:       counter("signals", "corrupted_edges_total", "Channel signals breaking the leading/trailing alternation"),
		DiscardedPairs:       counter("signals", "discarded_pairs_total", "Threshold pairs dropped for an invalid lead-trail gap"),
		UnattachedThresholds: counter("signals", "unattached_thresholds_total", "Higher threshold pairs without a matching anchor"),
		RawSignals:           counter("signals", "raw_total", "Photosensor signals built"),
		MatrixSignals:        counter("signals", "matrix_total", "Single-side scintillator signals built"),
		Hits:                 counter("hits", "total", "Hits built from two matched signals"),
		DummyHits:            counter("hits", "dummy_total", "Single-side hits on the reference scintillator"),
		UnmatchedSignals:     counter("hits", "unmatched_signals_total", "Signals without an opposite side partner"),
		Events:               counter("events", "total", "Events emitted by the event builder"),
		ScatterRemovals:      counter("lors", "scatter_removals_total", "Hits removed by the scatter test"),
		AcceptedLORs:         counter("lors", "accepted_total", "Hit pairs accepted by the elliptical cut"),
		RejectedLORs:         counter("lors", "rejected_total", "Hit pairs rejected by the elliptical cut"),
		Triples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lors",
			Name:      "triples_total",
			Help:      "Three hit combinations by topology",
		}, []string{"class"}),
	}
}

func (s *Statistics) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Statistics) AddTriple(class TripleClass) {
	s.Triples.WithLabelValues(class.String()).Inc()
}

func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func (s *Statistics) TripleCount(class TripleClass) float64 {
	return CounterValue(s.Triples.WithLabelValues(class.String()))
}

// Summary returns the counters in a fixed order for logging.
func (s *Statistics) Summary() []string {
	entries := []struct {
		name    string
		counter prometheus.Counter
	}{
		{"Windows processed", s.WindowsProcessed},
		{"Windows failed", s.WindowsFailed},
		{"Malformed records", s.MalformedRecords},
		{"Unknown channel records", s.UnknownChannels},
		{"Trigger records", s.TriggerRecords},
		{"Sentinel edges", s.SentinelEdges},
		{"Corrupted edges", s.CorruptedEdges},
		{"Discarded threshold pairs", s.DiscardedPairs},
		{"Unattached thresholds", s.UnattachedThresholds},
		{"Raw signals", s.RawSignals},
		{"Matrix signals", s.MatrixSignals},
		{"Hits", s.Hits},
		{"Dummy hits", s.DummyHits},
		{"Unmatched signals", s.UnmatchedSignals},
		{"Events", s.Events},
		{"Scatter removals", s.ScatterRemovals},
		{"Accepted LORs", s.AcceptedLORs},
		{"Rejected LORs", s.RejectedLORs},
	}
	lines := make([]string, 0, len(entries)+3)
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: %.0f", entry.name, CounterValue(entry.counter)))
	}
	for _, class := range []TripleClass{TripleThreeGamma, TripleBackToBackPlusPrompt, TripleUnclassified} {
		lines = append(lines, fmt.Sprintf("Triples %s: %.0f", class, s.TripleCount(class)))
	}
	return lines
}
