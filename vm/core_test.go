package vm

import (
	"path/filepath"
	"testing"
)

// TestNewCore tests assembling the subsystem from a configuration
func TestNewCore(t *testing.T) {
	config := DefaultConfig()
	config.PoolPages = 8
	config.SwapPath = filepath.Join(t.TempDir(), "swap.img")
	config.SwapCompression = "snappy"

	core, err := NewCore(config, nil)
	if err != nil {
		t.Fatalf("NewCore failed: %v", err)
	}
	defer core.Close()

	if core.Allocator.Capacity() != 8 {
		t.Errorf("Expected pool capacity 8, got %d", core.Allocator.Capacity())
	}

	proc := core.NewProcess(1, testStackBase)
	if proc.StackMax != config.StackMax {
		t.Error("Process stack limit should come from the configuration")
	}
}

// TestNewCoreMetricsToggle tests that disabling metrics in the
// configuration reaches the registry's tracker
func TestNewCoreMetricsToggle(t *testing.T) {
	config := DefaultConfig()
	config.PoolPages = 4
	config.SwapPath = filepath.Join(t.TempDir(), "swap.img")
	config.EnableMetrics = false

	core, err := NewCore(config, nil)
	if err != nil {
		t.Fatalf("NewCore failed: %v", err)
	}
	defer core.Close()

	proc := core.NewProcess(1, testStackBase)
	if _, err := proc.Dir.Create(proc, 0x10000); err != nil {
		t.Fatalf("Failed to create descriptor: %v", err)
	}
	if got := core.Faults.HandleFault(proc, 0x10000, userRead(testStackBase)); got != FaultResolved {
		t.Fatalf("Expected resolved, got %s", got)
	}

	if core.Registry.Metrics().GetPageFaults() != 0 {
		t.Error("Disabled metrics should not count faults")
	}
}

// TestNewCoreMmapPool tests the mmap-backed pool option
func TestNewCoreMmapPool(t *testing.T) {
	config := DefaultConfig()
	config.PoolPages = 4
	config.UseMmapPool = true
	config.SwapPath = filepath.Join(t.TempDir(), "swap.img")

	core, err := NewCore(config, nil)
	if err != nil {
		t.Fatalf("NewCore with mmap pool failed: %v", err)
	}
	defer core.Close()

	if _, ok := core.Allocator.(*MmapPool); !ok {
		t.Error("Allocator should be the mmap pool")
	}
}

// TestNewCoreRejectsBadConfig tests configuration validation at assembly
func TestNewCoreRejectsBadConfig(t *testing.T) {
	config := DefaultConfig()
	config.PoolPages = 0

	if _, err := NewCore(config, nil); err == nil {
		t.Error("NewCore should reject an invalid configuration")
	}
}
