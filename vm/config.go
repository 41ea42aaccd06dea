package vm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds paging-core configuration
type Config struct {
	// Physical memory configuration
	PoolPages uint32 `json:"pool_pages"` // Number of page frames in the physical pool
	PageSize uint32 `json:"page_size"` // Page size in bytes (default: 4096)
	UseMmapPool bool `json:"use_mmap_pool"` // Back the pool with an anonymous mmap region

	// Swap configuration
	SwapPath string `json:"swap_path"` // Path of the swap file
	SwapSlots uint32 `json:"swap_slots"` // Number of slots in the swap file
	SwapCompression string `json:"swap_compression"` // Slot compression (none, snappy, lz4)

	// Fault handling configuration
	StackMax uint64 `json:"stack_max"` // Absolute limit on stack growth, bytes

	// Performance configuration
	EnableMetrics bool `json:"enable_metrics"` // Whether to collect performance metrics
	LogLevel string `json:"log_level"` // Log level (debug, info, warn, error)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolPages: 64,
		PageSize: PageSize,
		UseMmapPool: false,
		SwapPath: "./swap.img",
		SwapSlots: 1024,
		SwapCompression: "none",
		StackMax: DefaultStackMax,
		EnableMetrics: true,
		LogLevel: "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	err = json.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables
// Falls back to default values if environment variables are not set
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	// Physical memory
	if val := os.Getenv("PAGINGCORE_POOL_PAGES"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PoolPages = uint32(n)
		}
	}

	if val := os.Getenv("PAGINGCORE_PAGE_SIZE"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.PageSize = uint32(n)
		}
	}

	if val := os.Getenv("PAGINGCORE_USE_MMAP_POOL"); val != "" {
		config.UseMmapPool = val == "true" || val == "1"
	}

	// Swap
	if val := os.Getenv("PAGINGCORE_SWAP_PATH"); val != "" {
		config.SwapPath = val
	}

	if val := os.Getenv("PAGINGCORE_SWAP_SLOTS"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.SwapSlots = uint32(n)
		}
	}

	if val := os.Getenv("PAGINGCORE_SWAP_COMPRESSION"); val != "" {
		config.SwapCompression = val
	}

	// Fault handling
	if val := os.Getenv("PAGINGCORE_STACK_MAX"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			config.StackMax = n
		}
	}

	// Performance
	if val := os.Getenv("PAGINGCORE_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("PAGINGCORE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PoolPages == 0 {
		return fmt.Errorf("pool size must be greater than 0")
	}

	if c.PageSize == 0 {
		return fmt.Errorf("page size must be greater than 0")
	}

	if c.PageSize%512 != 0 {
		return fmt.Errorf("page size must be a multiple of 512")
	}

	// Frames, descriptors, and swap slots are all sized by the build-time
	// page size; a differing configured value cannot take effect.
	if c.PageSize != PageSize {
		return fmt.Errorf("page size must be %d", PageSize)
	}

	if c.SwapPath == "" {
		return fmt.Errorf("swap path cannot be empty")
	}

	if c.SwapSlots == 0 {
		return fmt.Errorf("swap slot count must be greater than 0")
	}

	validCompression := map[string]bool{
		"none": true,
		"snappy": true,
		"lz4": true,
	}

	if !validCompression[c.SwapCompression] {
		return fmt.Errorf("invalid swap compression: %s (must be none, snappy, or lz4)", c.SwapCompression)
	}

	if c.StackMax == 0 || c.StackMax%uint64(c.PageSize) != 0 {
		return fmt.Errorf("stack max must be a positive multiple of the page size")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info": true,
		"warn": true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// SlogLevel maps the configured log level to its slog value
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
