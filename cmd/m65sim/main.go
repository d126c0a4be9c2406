// Package main provides the entry point for m65sim, a cycle-stepped
// M65832 system simulator.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/m65sim/emu"
	"github.com/sarchlab/m65sim/loader"
	"github.com/sarchlab/m65sim/timing"
	"github.com/sarchlab/m65sim/timing/cache"
	"github.com/sarchlab/m65sim/timing/latency"
)

var (
	cycles      = flag.Uint64("cycles", 0, "Cycle budget (0 = unlimited)")
	sandboxRoot = flag.String("sandbox", "", "Host directory backing guest file syscalls")
	diskPath    = flag.String("disk", "", "Block-device image file")
	diskRW      = flag.Bool("disk-rw", false, "Open the disk image writable")
	loadAddr    = flag.Uint("load", loader.DefaultLoadAddr, "Load address for flat binaries")
	trace       = flag.Bool("trace", false, "Print a register trace line per instruction")
	enableTime  = flag.Bool("timing", false, "Enable the timing model")
	configPath  = flag.String("config", "", "Path to timing configuration JSON file")
	modelCache  = flag.Bool("cache", false, "Model a data cache (timing mode)")
	verbose     = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 && *diskPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: m65sim [options] <program.bin|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(run())
}

func run() int {
	opts := []emu.EmulatorOption{
		emu.WithCycleBudget(*cycles),
		emu.WithSandboxRoot(*sandboxRoot),
	}

	var diskImage []byte
	if *diskPath != "" {
		data, err := os.ReadFile(*diskPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading disk image: %v\n", err)
			return 1
		}
		diskImage = data
		opts = append(opts, emu.WithDiskImage(diskImage, *diskRW))
	}

	traceOut := bufio.NewWriter(os.Stdout)
	defer traceOut.Flush()
	if *trace {
		opts = append(opts, emu.WithTraceFunc(func(s emu.Snapshot) {
			fmt.Fprintf(traceOut, "PC=%08X A=%08X X=%08X Y=%08X S=%08X P=%04X\n",
				s.PC, s.A, s.X, s.Y, s.S, s.P)
		}))
	}

	emulator := emu.NewEmulator(opts...)

	if *enableTime {
		if err := attachTiming(emulator); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if flag.NArg() >= 1 {
		if err := loadProgram(emulator, flag.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
			return 1
		}
	} else {
		if err := bootFromDisk(emulator, diskImage); err != nil {
			fmt.Fprintf(os.Stderr, "Error booting from disk: %v\n", err)
			return 1
		}
	}

	result := emulator.Run()
	traceOut.Flush()

	if *diskRW && *diskPath != "" && emulator.Disk() != nil {
		if err := os.WriteFile(*diskPath, emulator.Disk().Image(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing disk image back: %v\n", err)
		}
	}

	if *verbose || result.Reason != emu.StopExit {
		fmt.Fprintf(os.Stderr, "Stop: %v\n", result.Reason)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Instructions executed: %d\n", result.Insts)
		fmt.Fprintf(os.Stderr, "Cycles: %d\n", result.Cycles)
	}
	fmt.Printf("A=%08X\n", emulator.RegFile().A)

	switch result.Reason {
	case emu.StopExit:
		return int(result.ExitCode)
	case emu.StopHalt, emu.StopBudget:
		return 0
	default:
		return 1
	}
}

// loadProgram installs a flat binary or Intel HEX image and points
// the engine at its entry.
func loadProgram(emulator *emu.Emulator, path string) error {
	prog, err := loader.Load(path, uint32(*loadAddr))
	if err != nil {
		return err
	}
	if err := prog.Install(emulator.Memory()); err != nil {
		return err
	}
	emulator.SetEntry(prog.Entry)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded: %s\n", path)
		fmt.Fprintf(os.Stderr, "Entry point: 0x%X\n", prog.Entry)
		fmt.Fprintf(os.Stderr, "Segments: %d\n", len(prog.Segments))
	}
	return nil
}

// bootFromDisk runs the firmware boot sequence from the disk image.
func bootFromDisk(emulator *emu.Emulator, image []byte) error {
	header, err := loader.Boot(emulator, image)
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Booted kernel: %d bytes at 0x%X\n",
			header.KernelSize, header.KernelLoadAddr)
	}
	return nil
}

// attachTiming builds the timing model from the CLI flags.
func attachTiming(emulator *emu.Emulator) error {
	table := latency.NewTable()
	if *configPath != "" {
		cfg, err := latency.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		table = latency.NewTableWithConfig(cfg)
	}

	opts := []timing.ModelOption{timing.WithLatencyTable(table)}
	if *modelCache {
		opts = append(opts, timing.WithDataCache(cache.DefaultL1Config()))
	}
	timing.NewModel(opts...).Attach(emulator)
	return nil
}
