package renderer

import (
	"testing"

	"github.com/soerenfi/raytracing/tracer"
)

func TestFrameStateStopsAtMaxFrames(t *testing.T) {
	fs := NewFrameState(10, 1)
	if fs.Current != -1 {
		t.Fatalf("expected initial frame to be -1; got %d", fs.Current)
	}

	for step := 0; step < 12; step++ {
		prev := fs.Current
		fs.Advance()
		if fs.Current < prev {
			t.Fatalf("[step %d] frame index decreased from %d to %d", step, prev, fs.Current)
		}
	}

	if fs.Current != 9 {
		t.Fatalf("expected frame index to stop at 9; got %d", fs.Current)
	}
	if !fs.Done() {
		t.Fatal("expected frame budget to be exhausted")
	}
}

func TestFrameStateResetSupersedesAdvance(t *testing.T) {
	fs := NewFrameState(100, 1)
	for i := 0; i < 5; i++ {
		fs.Advance()
	}

	fs.Reset()
	if next := fs.Next(); next != 0 {
		t.Fatalf("expected frame 0 to be dispatched after a reset; got %d", next)
	}
	fs.Advance()
	if fs.Current != -1 {
		t.Fatalf("expected frame index -1 after a reset step; got %d", fs.Current)
	}

	fs.Advance()
	if fs.Current != 0 {
		t.Fatalf("expected frame index 0 after the following step; got %d", fs.Current)
	}
	if fs.Resets != 1 {
		t.Fatalf("expected 1 reset; got %d", fs.Resets)
	}
}

func TestFrameStateReducedMaxFrames(t *testing.T) {
	fs := NewFrameState(100, 1)
	for i := 0; i < 20; i++ {
		fs.Advance()
	}

	fs.MaxFrames = 10
	fs.Advance()
	if fs.Current != 19 || !fs.Done() {
		t.Fatalf("expected rendering to stop at frame 19; got %d (done: %t)", fs.Current, fs.Done())
	}
}

func TestRenderSize(t *testing.T) {
	type spec struct {
		region    Region
		descaling bool
		level     int
		exp       tracer.Size
	}
	specs := []spec{
		{Region{W: 1024, H: 768}, false, 4, tracer.Size{W: 1024, H: 768}},
		{Region{W: 1024, H: 768}, true, 4, tracer.Size{W: 256, H: 192}},
		{Region{X: 10, Y: 20, W: 801, H: 600}, true, 2, tracer.Size{W: 400, H: 300}},
		{Region{W: 3, H: 2}, true, 8, tracer.Size{W: 1, H: 1}},
		// Levels are clamped to [1, 8]
		{Region{W: 64, H: 64}, true, 32, tracer.Size{W: 8, H: 8}},
		{Region{W: 64, H: 64}, true, 0, tracer.Size{W: 64, H: 64}},
	}

	for index, s := range specs {
		fs := NewFrameState(10, 1)
		fs.Descaling = s.descaling
		fs.DescalingLevel = s.level
		if got := s.region.RenderSize(&fs); got != s.exp {
			t.Fatalf("[spec %d] expected render size %v; got %v", index, s.exp, got)
		}
	}
}

func TestRegionClip(t *testing.T) {
	type spec struct {
		region Region
		exp    Region
	}
	specs := []spec{
		{Region{W: 800, H: 600}, Region{W: 800, H: 600}},
		{Region{X: 500, Y: 100, W: 800, H: 600}, Region{X: 500, Y: 100, W: 524, H: 600}},
		{Region{X: 2000, W: 10, H: 10}, Region{W: 1024, H: 768}},
	}

	for index, s := range specs {
		if got := s.region.Clip(1024, 768); got != s.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, got)
		}
	}
}
