package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds per-class instruction latencies for the timing
// model. The defaults describe a modest in-order 32-bit core.
type TimingConfig struct {
	// ALULatency covers register-to-register arithmetic and logic.
	// Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// BranchLatency is the base cost of a branch instruction.
	// Default: 2 cycles.
	BranchLatency uint64 `json:"branch_latency"`

	// BranchTakenPenalty is added when a branch redirects the fetch
	// stream. Default: 1 cycle.
	BranchTakenPenalty uint64 `json:"branch_taken_penalty"`

	// LoadLatency is the cost of a memory load hitting the first
	// cache level. Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the cost of a memory store. Default: 2 cycles.
	StoreLatency uint64 `json:"store_latency"`

	// MultiplyLatency is the cost of MUL/MULU. Default: 4 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatency is the cost of DIV/DIVU. Default: 12 cycles.
	DivideLatency uint64 `json:"divide_latency"`

	// TrapLatency is the cost of a software trap round trip.
	// Default: 8 cycles.
	TrapLatency uint64 `json:"trap_latency"`

	// L1HitLatency is the first-level cache hit latency.
	// Default: 3 cycles.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// MemoryLatency is the uncached memory access latency.
	// Default: 50 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultTimingConfig returns the built-in latency values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:         1,
		BranchLatency:      2,
		BranchTakenPenalty: 1,
		LoadLatency:        3,
		StoreLatency:       2,
		MultiplyLatency:    4,
		DivideLatency:      12,
		TrapLatency:        8,
		L1HitLatency:       3,
		MemoryLatency:      50,
	}
}

// LoadConfig reads a TimingConfig from a JSON file. Missing fields
// keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}
	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}
	return nil
}

// Validate checks that every latency is non-zero.
func (c *TimingConfig) Validate() error {
	checks := []struct {
		name string
		val  uint64
	}{
		{"alu_latency", c.ALULatency},
		{"branch_latency", c.BranchLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"multiply_latency", c.MultiplyLatency},
		{"divide_latency", c.DivideLatency},
		{"trap_latency", c.TrapLatency},
		{"l1_hit_latency", c.L1HitLatency},
		{"memory_latency", c.MemoryLatency},
	}
	for _, ck := range checks {
		if ck.val == 0 {
			return fmt.Errorf("%s must be > 0", ck.name)
		}
	}
	return nil
}
