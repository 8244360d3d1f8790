package gateAuth

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID indexes a counter or histogram in [Metrics].
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricRefreshRateLimited
	MetricTokenRevoked
	MetricAuthorizeAllowed
	MetricAuthorizeDenied
	MetricUserCreated
	MetricUserDeleted
	MetricRoleCreated
	MetricInternalFailure
	// MetricValidateLatency is the only histogram.
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper edges of the validate-latency
// buckets. Anything slower lands in the trailing overflow bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counterSlot keeps each hot counter on its own cache line.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters and the validate-latency histogram.
// A nil or disabled Metrics ignores every write.
type Metrics struct {
	enabled bool
	latency bool
	slots   [metricIDCount]counterSlot
	buckets [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

// LatencyEnabled reports whether Observe records anything, so callers can
// skip reading the clock.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc bumps counter id by one.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d against id. Only MetricValidateLatency takes samples.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	i := sort.Search(len(latencyBounds), func(i int) bool { return d <= latencyBounds[i] })
	m.buckets[i].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

// Snapshot copies every counter and, with histograms on, the latency buckets.
// Counters are read one by one, so concurrent writers may straddle the copy.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for id := range m.slots {
		snap.Counters[MetricID(id)] = m.slots[id].n.Load()
	}
	if m.latency {
		out := make([]uint64, latencyBucketCount)
		for i := range m.buckets {
			out[i] = m.buckets[i].Load()
		}
		snap.Histograms[MetricValidateLatency] = out
	}
	return snap
}
