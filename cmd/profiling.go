package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spiffcs/forkaudit/internal/log"
)

// Profiler writes the optional CPU, heap and execution-trace profiles of a
// check run. Empty paths disable the corresponding profile.
type Profiler struct {
	cpuPath, memPath, tracePath string

	stops []func() error
}

// NewProfiler creates a profiler for the given output paths.
func NewProfiler(cpuPath, memPath, tracePath string) *Profiler {
	return &Profiler{cpuPath: cpuPath, memPath: memPath, tracePath: tracePath}
}

// Start begins CPU profiling and tracing. On failure anything already
// started is stopped again.
func (p *Profiler) Start() error {
	if p.cpuPath != "" {
		if err := p.begin(p.cpuPath, "CPU profile", pprof.StartCPUProfile, pprof.StopCPUProfile); err != nil {
			return err
		}
	}
	if p.tracePath != "" {
		if err := p.begin(p.tracePath, "trace", trace.Start, trace.Stop); err != nil {
			p.stopStarted()
			return err
		}
	}
	return nil
}

func (p *Profiler) begin(path, what string, start func(w io.Writer) error, stop func()) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", what, err)
	}
	if err := start(f); err != nil {
		return errors.Join(fmt.Errorf("could not start %s: %w", what, err), f.Close())
	}
	p.stops = append(p.stops, func() error {
		stop()
		return f.Close()
	})
	return nil
}

// Stop ends profiling in reverse start order and writes the heap profile.
// Failures are logged; profiling never fails a check.
func (p *Profiler) Stop() {
	p.stopStarted()

	if p.memPath == "" {
		return
	}
	if err := writeHeapProfile(p.memPath); err != nil {
		log.Warn("could not write memory profile", "path", p.memPath, "error", err)
	}
}

func (p *Profiler) stopStarted() {
	for i := len(p.stops) - 1; i >= 0; i-- {
		if err := p.stops[i](); err != nil {
			log.Warn("could not finish profile", "error", err)
		}
	}
	p.stops = nil
}

func writeHeapProfile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	runtime.GC() // up-to-date statistics
	return pprof.WriteHeapProfile(f)
}
