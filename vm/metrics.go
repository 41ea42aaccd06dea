package vm

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Histogram tracks latency distribution with percentile support
type Histogram struct {
	samples []float64 // Latencies in microseconds
	mu sync.RWMutex
	maxSize int // Maximum samples to retain
	sorted bool // Track if samples are sorted
}

// NewHistogram creates a new histogram with a max sample size
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000 // Default: keep last 10k samples
	}
	return &Histogram{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
		sorted: true,
	}
}

// Record adds a latency sample (in microseconds)
func (h *Histogram) Record(latencyUs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// If at capacity, remove oldest sample (FIFO)
	if len(h.samples) >= h.maxSize {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}

	h.samples = append(h.samples, latencyUs)
	h.sorted = false
}

// Percentile calculates the given percentile (0-100)
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return 0
	}

	// Sort if needed (lazy sorting)
	if !h.sorted {
		h.mu.RUnlock()
		h.mu.Lock()
		if !h.sorted { // Double-check after acquiring write lock
			sort.Float64s(h.samples)
			h.sorted = true
		}
		h.mu.Unlock()
		h.mu.RLock()
	}

	rank := (p / 100.0) * float64(len(h.samples)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return h.samples[lower]
	}

	// Linear interpolation between lower and upper
	weight := rank - float64(lower)
	return h.samples[lower]*(1-weight) + h.samples[upper]*weight
}

// Mean calculates the average latency
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range h.samples {
		sum += v
	}
	return sum / float64(len(h.samples))
}

// Min returns the minimum latency
func (h *Histogram) Min() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return 0
	}

	min := h.samples[0]
	for _, v := range h.samples {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the maximum latency
func (h *Histogram) Max() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return 0
	}

	max := h.samples[0]
	for _, v := range h.samples {
		if v > max {
			max = v
		}
	}
	return max
}

// Count returns the number of samples
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Reset clears all samples
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
	h.sorted = true
}

// HistogramSnapshot holds current percentile statistics
type HistogramSnapshot struct {
	Count int
	Min float64
	Max float64
	Mean float64
	P50 float64 // Median
	P95 float64
	P99 float64
}

// Snapshot captures current histogram statistics
func (h *Histogram) Snapshot() HistogramSnapshot {
	return HistogramSnapshot{
		Count: h.Count(),
		Min: h.Min(),
		Max: h.Max(),
		Mean: h.Mean(),
		P50: h.Percentile(50),
		P95: h.Percentile(95),
		P99: h.Percentile(99),
	}
}

// Metrics tracks paging-core performance metrics
type Metrics struct {
	// Fault metrics
	pageFaults atomic.Uint64
	faultsResolved atomic.Uint64
	faultsKilled atomic.Uint64
	probeFaults atomic.Uint64
	stackGrowths atomic.Uint64
	zeroFills atomic.Uint64

	// Frame metrics
	frameAllocs atomic.Uint64
	frameFrees atomic.Uint64
	evictions atomic.Uint64

	// Swap metrics
	swapOuts atomic.Uint64
	swapIns atomic.Uint64

	// Latency histograms (microseconds)
	faultLatency *Histogram // Full fault-handling latency
	evictionLatency *Histogram // Victim selection + transfer latency

	// disabled drops all recording when set; counters stay readable
	disabled atomic.Bool

	// Timing
	startTime time.Time
	mu sync.RWMutex
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		faultLatency: NewHistogram(10000),
		evictionLatency: NewHistogram(10000),
	}
}

// SetEnabled turns metric recording on or off. Disabled metrics accept
// Record calls as no-ops so call sites need no conditionals.
func (m *Metrics) SetEnabled(enabled bool) {
	m.disabled.Store(!enabled)
}

// Fault metrics

func (m *Metrics) RecordPageFault() {
	if m.disabled.Load() {
		return
	}
	m.pageFaults.Add(1)
}

func (m *Metrics) RecordFaultResolved() {
	if m.disabled.Load() {
		return
	}
	m.faultsResolved.Add(1)
}

func (m *Metrics) RecordFaultKilled() {
	if m.disabled.Load() {
		return
	}
	m.faultsKilled.Add(1)
}

func (m *Metrics) RecordProbeFault() {
	if m.disabled.Load() {
		return
	}
	m.probeFaults.Add(1)
}

func (m *Metrics) RecordStackGrowth() {
	if m.disabled.Load() {
		return
	}
	m.stackGrowths.Add(1)
}

func (m *Metrics) RecordZeroFill() {
	if m.disabled.Load() {
		return
	}
	m.zeroFills.Add(1)
}

// Frame metrics

func (m *Metrics) RecordFrameAlloc() {
	if m.disabled.Load() {
		return
	}
	m.frameAllocs.Add(1)
}

func (m *Metrics) RecordFrameFree() {
	if m.disabled.Load() {
		return
	}
	m.frameFrees.Add(1)
}

func (m *Metrics) RecordEviction() {
	if m.disabled.Load() {
		return
	}
	m.evictions.Add(1)
}

// Swap metrics

func (m *Metrics) RecordSwapOut() {
	if m.disabled.Load() {
		return
	}
	m.swapOuts.Add(1)
}

func (m *Metrics) RecordSwapIn() {
	if m.disabled.Load() {
		return
	}
	m.swapIns.Add(1)
}

// Latency recording

// RecordFaultLatency records the latency of one fault handling pass
func (m *Metrics) RecordFaultLatency(duration time.Duration) {
	if m.disabled.Load() {
		return
	}
	m.faultLatency.Record(float64(duration.Microseconds()))
}

// RecordEvictionLatency records the latency of one eviction
func (m *Metrics) RecordEvictionLatency(duration time.Duration) {
	if m.disabled.Load() {
		return
	}
	m.evictionLatency.Record(float64(duration.Microseconds()))
}

// Getters

func (m *Metrics) GetPageFaults() uint64 {
	return m.pageFaults.Load()
}

func (m *Metrics) GetFaultsResolved() uint64 {
	return m.faultsResolved.Load()
}

func (m *Metrics) GetFaultsKilled() uint64 {
	return m.faultsKilled.Load()
}

func (m *Metrics) GetProbeFaults() uint64 {
	return m.probeFaults.Load()
}

func (m *Metrics) GetStackGrowths() uint64 {
	return m.stackGrowths.Load()
}

func (m *Metrics) GetZeroFills() uint64 {
	return m.zeroFills.Load()
}

func (m *Metrics) GetFrameAllocs() uint64 {
	return m.frameAllocs.Load()
}

func (m *Metrics) GetFrameFrees() uint64 {
	return m.frameFrees.Load()
}

func (m *Metrics) GetEvictions() uint64 {
	return m.evictions.Load()
}

func (m *Metrics) GetSwapOuts() uint64 {
	return m.swapOuts.Load()
}

func (m *Metrics) GetSwapIns() uint64 {
	return m.swapIns.Load()
}

func (m *Metrics) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// GetFaultLatency returns a snapshot of the fault latency distribution
func (m *Metrics) GetFaultLatency() HistogramSnapshot {
	return m.faultLatency.Snapshot()
}

// GetEvictionLatency returns a snapshot of the eviction latency distribution
func (m *Metrics) GetEvictionLatency() HistogramSnapshot {
	return m.evictionLatency.Snapshot()
}

// LogMetrics logs all metrics using structured logging
func (m *Metrics) LogMetrics(logger *slog.Logger) {
	fault := m.GetFaultLatency()
	eviction := m.GetEvictionLatency()

	logger.Info("Paging Core Metrics",
		slog.Group("faults",
			slog.Uint64("total", m.GetPageFaults()),
			slog.Uint64("resolved", m.GetFaultsResolved()),
			slog.Uint64("killed", m.GetFaultsKilled()),
			slog.Uint64("probe_faults", m.GetProbeFaults()),
			slog.Uint64("stack_growths", m.GetStackGrowths()),
			slog.Uint64("zero_fills", m.GetZeroFills()),
		),
		slog.Group("frames",
			slog.Uint64("allocated", m.GetFrameAllocs()),
			slog.Uint64("freed", m.GetFrameFrees()),
			slog.Uint64("evictions", m.GetEvictions()),
		),
		slog.Group("swap",
			slog.Uint64("swap_outs", m.GetSwapOuts()),
			slog.Uint64("swap_ins", m.GetSwapIns()),
		),
		slog.Group("latency_us",
			slog.Group("fault",
				slog.Int("count", fault.Count),
				slog.Float64("mean", fault.Mean),
				slog.Float64("p50", fault.P50),
				slog.Float64("p95", fault.P95),
				slog.Float64("p99", fault.P99),
			),
			slog.Group("eviction",
				slog.Int("count", eviction.Count),
				slog.Float64("mean", eviction.Mean),
				slog.Float64("p95", eviction.P95),
				slog.Float64("p99", eviction.P99),
			),
		),
		slog.Duration("uptime", m.GetUptime()),
	)
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	m.pageFaults.Store(0)
	m.faultsResolved.Store(0)
	m.faultsKilled.Store(0)
	m.probeFaults.Store(0)
	m.stackGrowths.Store(0)
	m.zeroFills.Store(0)
	m.frameAllocs.Store(0)
	m.frameFrees.Store(0)
	m.evictions.Store(0)
	m.swapOuts.Store(0)
	m.swapIns.Store(0)
	m.faultLatency.Reset()
	m.evictionLatency.Reset()

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
