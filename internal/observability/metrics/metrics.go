package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	namespace = "intake"

	ingestTotalName = "intake_voice_ingest_total"
)

// IntakeMetrics exposes counters/histograms for the voice intake pipeline.
type IntakeMetrics struct {
	ingestTotal    *prometheus.CounterVec
	mergeDecisions *prometheus.CounterVec
	finalizeTotal  *prometheus.CounterVec
	reviewFields   *prometheus.CounterVec
	refineLatency  *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voice",
			Name:      "ingest_total",
			Help:      "Voice tool-call key/value pairs by outcome",
		}, []string{"outcome"}),
		mergeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "decisions_total",
			Help:      "Per-field merge decisions by stage",
		}, []string{"stage", "decision"}),
		finalizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finalize_total",
			Help:      "Session finalizations by refinement outcome",
		}, []string{"status"}),
		reviewFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "review_fields_total",
			Help:      "Fields still below the review threshold at finalization",
		}, []string{"field"}),
		refineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refine",
			Name:      "latency_seconds",
			Help:      "Latency of transcript re-extraction",
			Buckets:   prometheus.DefBuckets,
		}, []string{"extractor", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ingestTotal, m.mergeDecisions, m.finalizeTotal, m.reviewFields, m.refineLatency, m.activeSessions)
	return m
}

// ObserveIngest counts one key/value pair: "accepted", "unknown_field" or "rejected".
func (m *IntakeMetrics) ObserveIngest(outcome string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) ObserveMerge(stage, decision string) {
	if m == nil {
		return
	}
	m.mergeDecisions.WithLabelValues(stage, decision).Inc()
}

func (m *IntakeMetrics) ObserveFinalize(status string, reviewFields []string) {
	if m == nil {
		return
	}
	m.finalizeTotal.WithLabelValues(status).Inc()
	for _, f := range reviewFields {
		m.reviewFields.WithLabelValues(f).Inc()
	}
}

func (m *IntakeMetrics) ObserveRefineLatency(extractor, status string, seconds float64) {
	if m == nil {
		return
	}
	m.refineLatency.WithLabelValues(extractor, status).Observe(seconds)
}

func (m *IntakeMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// IngestStats is a point-in-time count of ingest outcomes.
type IngestStats struct {
	Total     int64            `json:"total"`
	ByOutcome map[string]int64 `json:"by_outcome"`
}

// SnapshotIngest reads the ingest counter back out of a gatherer.
func SnapshotIngest(gatherer prometheus.Gatherer) IngestStats {
	stats := IngestStats{ByOutcome: map[string]int64{}}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return stats
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == ingestTotalName {
			family = mf
			break
		}
	}
	if family == nil {
		return stats
	}

	for _, metric := range family.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		n := int64(metric.GetCounter().GetValue())
		stats.Total += n
		stats.ByOutcome[labelValue(metric, "outcome")] += n
	}
	return stats
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
