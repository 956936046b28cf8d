package gpu

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

// Timing for a named profiler scope.
type Timing struct {
	Name     string
	Duration time.Duration
}

// Profiler collects the time spent in named scopes during a frame.
type Profiler struct {
	mu      sync.Mutex
	order   []string
	timings map[string]time.Duration
	started map[string]time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		timings: make(map[string]time.Duration),
		started: make(map[string]time.Time),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	p.started[name] = time.Now()
	p.mu.Unlock()
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.started[name]
	if !ok {
		return
	}
	delete(p.started, name)
	if _, seen := p.timings[name]; !seen {
		p.order = append(p.order, name)
	}
	p.timings[name] += time.Since(start)
}

// Get the duration of a scope or zero if it was never recorded.
func (p *Profiler) Duration(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timings[name]
}

// Get all recorded scopes in the order they were first closed.
func (p *Profiler) Timings() []Timing {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Timing, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, Timing{Name: name, Duration: p.timings[name]})
	}
	return out
}

// Clear all timings.
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.order = p.order[:0]
	p.timings = make(map[string]time.Duration)
	p.started = make(map[string]time.Time)
	p.mu.Unlock()
}

func (p *Profiler) String() string {
	var buf bytes.Buffer
	for _, t := range p.Timings() {
		fmt.Fprintf(&buf, "%s: %s\n", t.Name, t.Duration)
	}
	return buf.String()
}
