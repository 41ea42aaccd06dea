package vm

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

// TestMetricsCounters tests the basic counters
func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordPageFault()
	m.RecordPageFault()
	m.RecordFaultResolved()
	m.RecordEviction()
	m.RecordSwapOut()
	m.RecordSwapIn()
	m.RecordStackGrowth()

	if m.GetPageFaults() != 2 {
		t.Errorf("Expected 2 page faults, got %d", m.GetPageFaults())
	}
	if m.GetFaultsResolved() != 1 {
		t.Errorf("Expected 1 resolved fault, got %d", m.GetFaultsResolved())
	}
	if m.GetEvictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", m.GetEvictions())
	}
	if m.GetSwapOuts() != 1 || m.GetSwapIns() != 1 {
		t.Error("Swap counters should each be 1")
	}
	if m.GetStackGrowths() != 1 {
		t.Errorf("Expected 1 stack growth, got %d", m.GetStackGrowths())
	}

	m.Reset()
	if m.GetPageFaults() != 0 || m.GetEvictions() != 0 {
		t.Error("Reset should zero the counters")
	}
}

// TestHistogramPercentiles tests percentile math on a known sequence
func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram(1000)

	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if got := h.Percentile(50); got < 50 || got > 51 {
		t.Errorf("P50 of 1..100 should be about 50.5, got %f", got)
	}
	if got := h.Min(); got != 1 {
		t.Errorf("Expected min 1, got %f", got)
	}
	if got := h.Max(); got != 100 {
		t.Errorf("Expected max 100, got %f", got)
	}
	if got := h.Mean(); got != 50.5 {
		t.Errorf("Expected mean 50.5, got %f", got)
	}
}

// TestHistogramEviction tests the FIFO sample window
func TestHistogramEviction(t *testing.T) {
	h := NewHistogram(10)

	for i := 0; i < 25; i++ {
		h.Record(float64(i))
	}

	if h.Count() != 10 {
		t.Errorf("Expected 10 retained samples, got %d", h.Count())
	}
	if got := h.Min(); got != 15 {
		t.Errorf("Oldest samples should be dropped, min is %f", got)
	}
}

// TestMetricsDisabled tests that disabled metrics drop everything
func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics()
	m.SetEnabled(false)

	m.RecordPageFault()
	m.RecordEviction()
	m.RecordFaultLatency(time.Millisecond)

	if m.GetPageFaults() != 0 || m.GetEvictions() != 0 {
		t.Error("Disabled metrics should not count")
	}
	if m.GetFaultLatency().Count != 0 {
		t.Error("Disabled metrics should not record latencies")
	}

	m.SetEnabled(true)
	m.RecordPageFault()
	if m.GetPageFaults() != 1 {
		t.Error("Re-enabled metrics should count again")
	}
}

// TestFaultLatencyRecording tests the latency histogram plumbing
func TestFaultLatencyRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordFaultLatency(250 * time.Microsecond)
	m.RecordEvictionLatency(2 * time.Millisecond)

	if got := m.GetFaultLatency().Count; got != 1 {
		t.Errorf("Expected 1 fault latency sample, got %d", got)
	}
	if got := m.GetEvictionLatency().Mean; got != 2000 {
		t.Errorf("Expected eviction mean of 2000us, got %f", got)
	}
}

// TestLogMetrics tests that structured metric logging does not blow up
func TestLogMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordPageFault()
	m.RecordFaultLatency(time.Millisecond)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m.LogMetrics(logger)
}
