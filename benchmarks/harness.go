// Package benchmarks provides a calibration harness for the M65832
// timing model: small machine-code kernels run under the engine with
// timing attached, and the harness reports cycle counts and CPI.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/m65sim/emu"
	"github.com/sarchlab/m65sim/timing"
	"github.com/sarchlab/m65sim/timing/cache"
	"github.com/sarchlab/m65sim/timing/latency"
)

// loadAddr is where benchmark kernels are installed and entered.
const loadAddr = 0x2000

// Result holds the timing outcome of one benchmark run.
type Result struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Cycles is the total simulated cycle count.
	Cycles uint64 `json:"cycles"`

	// Instructions is the number of retired instructions.
	Instructions uint64 `json:"instructions"`

	// CPI is cycles per instruction.
	CPI float64 `json:"cpi"`

	// Cache holds the data-cache counters when a cache was modeled.
	Cache cache.Statistics `json:"cache"`
}

// WriteJSON emits the result as indented JSON, for comparing runs
// across timing configurations.
func (r Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Option adjusts one benchmark run.
type Option func(*runConfig)

type runConfig struct {
	timingCfg *latency.TimingConfig
	cacheCfg  *cache.Config
	budget    uint64
}

// WithTimingConfig overrides the latency table for the run.
func WithTimingConfig(cfg *latency.TimingConfig) Option {
	return func(rc *runConfig) { rc.timingCfg = cfg }
}

// WithDataCache models a data cache with the given geometry.
func WithDataCache(cfg cache.Config) Option {
	return func(rc *runConfig) { rc.cacheCfg = &cfg }
}

// WithCycleBudget bounds the run.
func WithCycleBudget(budget uint64) Option {
	return func(rc *runConfig) { rc.budget = budget }
}

// Run executes one benchmark kernel to completion under the timing
// model and reports its cycle behavior. Kernels end with STP.
func Run(name string, program []byte, opts ...Option) (Result, error) {
	rc := runConfig{budget: 100_000_000}
	for _, opt := range opts {
		opt(&rc)
	}

	e := emu.NewEmulator(
		emu.WithStdout(io.Discard),
		emu.WithStderr(io.Discard),
		emu.WithCycleBudget(rc.budget),
	)

	modelOpts := []timing.ModelOption{}
	if rc.timingCfg != nil {
		modelOpts = append(modelOpts,
			timing.WithLatencyTable(latency.NewTableWithConfig(rc.timingCfg)))
	}
	if rc.cacheCfg != nil {
		modelOpts = append(modelOpts, timing.WithDataCache(*rc.cacheCfg))
	}
	model := timing.NewModel(modelOpts...)
	model.Attach(e)

	if err := e.Memory().StoreBytes(loadAddr, program); err != nil {
		return Result{}, fmt.Errorf("install %s: %w", name, err)
	}
	e.SetEntry(loadAddr)

	res := e.Run()
	if res.Err != nil {
		return Result{}, fmt.Errorf("run %s: %w", name, res.Err)
	}
	if res.Reason != emu.StopHalt {
		return Result{}, fmt.Errorf("run %s: stopped on %v, want halt", name, res.Reason)
	}

	result := Result{
		Name:         name,
		Cycles:       res.Cycles,
		Instructions: res.Insts,
		Cache:        model.CacheStats(),
	}
	if res.Insts > 0 {
		result.CPI = float64(res.Cycles) / float64(res.Insts)
	}
	return result, nil
}
