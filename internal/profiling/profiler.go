// Package profiling writes CPU, heap and execution trace profiles for a
// command run.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the profile files to write. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profile is requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Profiler manages the profiles of one run.
type Profiler struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins CPU and trace profiling as requested. Stop must be called to
// flush them and write the heap profile.
func Start(opts Options) (*Profiler, error) {
	p := &Profiler{opts: opts}

	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			p.stopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		p.traceFile = f
	}

	return p, nil
}

// Stop ends profiling and writes the heap profile. Safe to call more than
// once and on a nil Profiler.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	p.stopCPU()

	var errs []error
	if p.traceFile != nil {
		trace.Stop()
		errs = append(errs, p.traceFile.Close())
		p.traceFile = nil
	}
	if p.opts.Heap != "" {
		errs = append(errs, writeHeap(p.opts.Heap))
		p.opts.Heap = ""
	}
	return errors.Join(errs...)
}

func (p *Profiler) stopCPU() {
	if p.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = p.cpuFile.Close()
	p.cpuFile = nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
