package telemetry

import (
	"fmt"
	"runtime"
	"sync"
)

// Resource usage reported by a monitor.
type Stats struct {
	HeapAlloc  uint64
	Goroutines int
	GCCycles   uint32
}

func (s Stats) String() string {
	return fmt.Sprintf("heap %d MiB, %d go-routines, %d gc cycles", s.HeapAlloc>>20, s.Goroutines, s.GCCycles)
}

// A Monitor samples device utilization for display.
type Monitor interface {
	// Get the name of the monitored device. An empty name hides the
	// monitor from the UI.
	Name() string

	// Take a new sample.
	Refresh()

	// Get the last sample.
	Stats() Stats
}

// Nop is a monitor that reports nothing.
type Nop struct{}

func (Nop) Name() string { return "" }
func (Nop) Refresh()     {}
func (Nop) Stats() Stats { return Stats{} }

// Runtime reports go runtime statistics for the process.
type Runtime struct {
	mu   sync.Mutex
	last Stats
}

func NewRuntime() *Runtime {
	r := &Runtime{}
	r.Refresh()
	return r
}

func (r *Runtime) Name() string {
	return fmt.Sprintf("%s/%s (%d cpus)", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}

func (r *Runtime) Refresh() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.mu.Lock()
	r.last = Stats{
		HeapAlloc:  mem.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
		GCCycles:   mem.NumGC,
	}
	r.mu.Unlock()
}

func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
