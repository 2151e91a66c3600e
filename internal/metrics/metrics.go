package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for trace events the correlation engine discards.
const (
	DropUntracked   = "untracked"
	DropLoopback    = "loopback"
	DropIPv6        = "ipv6"
	DropRateLimited = "rate_limited"
	DropMalformed   = "malformed"
	DropStopped     = "stopped"
)

// Metrics holds the collectors shared by the capture and scan pipelines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsReceived *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	recordsCreated prometheus.Counter
	recordsUpdated prometheus.Counter
	liveRecords    prometheus.Gauge
	scanFiles      prometheus.Counter
	scanFindings   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsift_trace_events_total",
			Help: "Trace events received by the correlation engine.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsift_trace_events_dropped_total",
			Help: "Trace events discarded before producing a record.",
		}, []string{"reason"}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsift_records_created_total",
			Help: "Traffic records created by correlation.",
		}),
		recordsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsift_records_updated_total",
			Help: "Merges into existing traffic records.",
		}),
		liveRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsift_records",
			Help: "Traffic records held by the current capture session.",
		}),
		scanFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsift_scan_files_total",
			Help: "Files processed by the artifact scanner.",
		}),
		scanFindings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsift_scan_findings_total",
			Help: "Unique domains emitted by the artifact scanner.",
		}),
	}

	reg.MustRegister(
		m.eventsReceived, m.eventsDropped,
		m.recordsCreated, m.recordsUpdated, m.liveRecords,
		m.scanFiles, m.scanFindings,
	)
	return m
}

func (m *Metrics) EventReceived(kind string) {
	if m != nil {
		m.eventsReceived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) EventDropped(reason string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(reason).Inc()
	}
}

// Dropped returns the drop counter for reason.
func (m *Metrics) Dropped(reason string) prometheus.Counter {
	return m.eventsDropped.WithLabelValues(reason)
}

func (m *Metrics) RecordCreated() {
	if m != nil {
		m.recordsCreated.Inc()
		m.liveRecords.Inc()
	}
}

func (m *Metrics) RecordUpdated() {
	if m != nil {
		m.recordsUpdated.Inc()
	}
}

// ResetRecords zeroes the live record gauge at session start.
func (m *Metrics) ResetRecords() {
	if m != nil {
		m.liveRecords.Set(0)
	}
}

func (m *Metrics) ScanFile() {
	if m != nil {
		m.scanFiles.Inc()
	}
}

func (m *Metrics) ScanFinding() {
	if m != nil {
		m.scanFindings.Inc()
	}
}
