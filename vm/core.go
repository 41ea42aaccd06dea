package vm

import (
	"fmt"
	"log/slog"
	"os"
)

// Core bundles a configured paging subsystem: physical pool, swap
// store, frame registry, and fault coordinator.
type Core struct {
	Config *Config
	Allocator Allocator
	Swap *FileSwapStore
	Registry *FrameRegistry
	Faults *FaultCoordinator
}

// NewCore assembles a paging core from a configuration. A nil logger
// gets a text logger on stderr at the configured level.
func NewCore(config *Config, logger *slog.Logger) (*Core, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: config.SlogLevel(),
		}))
	}

	var allocator Allocator
	if config.UseMmapPool {
		pool, err := NewMmapPool(config.PoolPages)
		if err != nil {
			return nil, fmt.Errorf("failed to create mmap pool: %w", err)
		}
		allocator = pool
	} else {
		allocator = NewPhysPool(config.PoolPages)
	}

	compression, err := ParseCompressionType(config.SwapCompression)
	if err != nil {
		return nil, fmt.Errorf("invalid swap compression: %w", err)
	}

	swap, err := NewFileSwapStore(config.SwapPath, config.SwapSlots, compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap store: %w", err)
	}

	registry := NewFrameRegistry(allocator, swap)
	registry.Metrics().SetEnabled(config.EnableMetrics)

	return &Core{
		Config: config,
		Allocator: allocator,
		Swap: swap,
		Registry: registry,
		Faults: NewFaultCoordinator(registry, swap, logger),
	}, nil
}

// NewProcess creates a process whose stack limit comes from the core's
// configuration
func (c *Core) NewProcess(id uint32, stackBase uintptr) *Process {
	return NewProcess(id, stackBase, c.Config.StackMax)
}

// Close releases the core's swap file. All processes must have been
// torn down first.
func (c *Core) Close() error {
	return c.Swap.Close()
}
