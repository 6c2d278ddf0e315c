// Package telemetry tracks per-stage packet-plane counters and exposes
// them both in-process (for the control plane's get_state response) and as
// Prometheus metrics.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets are the histogram bucket upper bounds, in nanoseconds,
// logarithmically spaced from 10us to 1s.
var LatencyBuckets = []uint64{
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
}

const numLatencyBuckets = 6

// Observer is the narrow interface stages and the executor report
// packet-plane events through, letting call sites depend on an interface
// rather than the concrete Registry.
type Observer interface {
	ObservePacketIn(stage string)
	ObservePacketOut(stage string)
	ObservePacketDropped(stage string)
	ObserveProcessLatency(stage string, latencyNs uint64)
	ObserveError(stage string)
}

// StageMetrics holds one stage's atomic counters.
type StageMetrics struct {
	PacketsIn      atomic.Uint64
	PacketsOut     atomic.Uint64
	PacketsDropped atomic.Uint64
	Errors         atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyHist    [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

func newStageMetrics() *StageMetrics {
	sm := &StageMetrics{}
	sm.StartTime.Store(time.Now().UnixNano())
	return sm
}

func (sm *StageMetrics) recordLatency(ns uint64) {
	sm.TotalLatencyNs.Add(ns)
	sm.OpCount.Add(1)
	for i, bound := range LatencyBuckets {
		if ns <= bound {
			sm.LatencyHist[i].Add(1)
		}
	}
}

// MeanLatencyNs returns the running mean processing latency, or 0 if no
// samples have been recorded yet.
func (sm *StageMetrics) MeanLatencyNs() float64 {
	count := sm.OpCount.Load()
	if count == 0 {
		return 0
	}
	return float64(sm.TotalLatencyNs.Load()) / float64(count)
}

// Registry is the process-wide Observer implementation: a set of
// lazily-created per-stage counters, mirrored into Prometheus collectors
// registered against reg.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]*StageMetrics

	promPacketsIn      *prometheus.CounterVec
	promPacketsOut     *prometheus.CounterVec
	promPacketsDropped *prometheus.CounterVec
	promErrors         *prometheus.CounterVec
	promLatency        *prometheus.HistogramVec
}

// NewRegistry creates a Registry and registers its collectors with reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Registry{
		stages: make(map[string]*StageMetrics),
		promPacketsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eegpipe_packets_in_total", Help: "Packets received by a stage.",
		}, []string{"stage"}),
		promPacketsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eegpipe_packets_out_total", Help: "Packets emitted by a stage.",
		}, []string{"stage"}),
		promPacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eegpipe_packets_dropped_total", Help: "Packets dropped by a stage.",
		}, []string{"stage"}),
		promErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eegpipe_stage_errors_total", Help: "Errors reported by a stage.",
		}, []string{"stage"}),
		promLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eegpipe_stage_process_latency_seconds",
			Help:    "Stage Process/Produce latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(r.promPacketsIn, r.promPacketsOut, r.promPacketsDropped, r.promErrors, r.promLatency)
	return r
}

// Stage returns (creating if necessary) the StageMetrics for the given
// stage name.
func (r *Registry) Stage(name string) *StageMetrics {
	r.mu.RLock()
	sm, ok := r.stages[name]
	r.mu.RUnlock()
	if ok {
		return sm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sm, ok := r.stages[name]; ok {
		return sm
	}
	sm = newStageMetrics()
	r.stages[name] = sm
	return sm
}

// Snapshot returns a read-only summary of every stage's counters, for the
// control plane's get_state response.
func (r *Registry) Snapshot() map[string]StageSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]StageSnapshot, len(r.stages))
	for name, sm := range r.stages {
		out[name] = StageSnapshot{
			PacketsIn:      sm.PacketsIn.Load(),
			PacketsOut:     sm.PacketsOut.Load(),
			PacketsDropped: sm.PacketsDropped.Load(),
			Errors:         sm.Errors.Load(),
			MeanLatencyNs:  sm.MeanLatencyNs(),
		}
	}
	return out
}

// StageSnapshot is a point-in-time copy of one stage's counters.
type StageSnapshot struct {
	PacketsIn      uint64  `json:"packets_in"`
	PacketsOut     uint64  `json:"packets_out"`
	PacketsDropped uint64  `json:"packets_dropped"`
	Errors         uint64  `json:"errors"`
	MeanLatencyNs  float64 `json:"mean_latency_ns"`
}

func (r *Registry) ObservePacketIn(stage string) {
	r.Stage(stage).PacketsIn.Add(1)
	r.promPacketsIn.WithLabelValues(stage).Inc()
}

func (r *Registry) ObservePacketOut(stage string) {
	r.Stage(stage).PacketsOut.Add(1)
	r.promPacketsOut.WithLabelValues(stage).Inc()
}

func (r *Registry) ObservePacketDropped(stage string) {
	r.Stage(stage).PacketsDropped.Add(1)
	r.promPacketsDropped.WithLabelValues(stage).Inc()
}

func (r *Registry) ObserveError(stage string) {
	r.Stage(stage).Errors.Add(1)
	r.promErrors.WithLabelValues(stage).Inc()
}

func (r *Registry) ObserveProcessLatency(stage string, latencyNs uint64) {
	r.Stage(stage).recordLatency(latencyNs)
	r.promLatency.WithLabelValues(stage).Observe(float64(latencyNs) / 1e9)
}

// NoopObserver discards every observation; the executor and control plane
// fall back to it when given a nil Observer, and tests use it where
// Prometheus wiring isn't wanted.
type NoopObserver struct{}

func (NoopObserver) ObservePacketIn(string)               {}
func (NoopObserver) ObservePacketOut(string)               {}
func (NoopObserver) ObservePacketDropped(string)           {}
func (NoopObserver) ObserveProcessLatency(string, uint64) {}
func (NoopObserver) ObserveError(string)                  {}

var _ Observer = (*Registry)(nil)
var _ Observer = NoopObserver{}
