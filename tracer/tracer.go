package tracer

import (
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
)

// The renderer implementations that can occupy a Slot.
type Kind uint8

const (
	None Kind = iota
	Pipeline
	Query
)

func (k Kind) String() string {
	switch k {
	case Pipeline:
		return "pipeline"
	case Query:
		return "query"
	}
	return "none"
}

// Indices of the descriptor sets passed to Create and Run.
const (
	AccelSet = iota
	OutputSet
	SceneSet
	EnvSet
	NumSets
)

// Binding of the render target inside the output set.
const OutputImageBinding uint32 = 0

// Get the descriptor layout of the output set.
func OutputLayout() gpu.Layout {
	return gpu.Layout{
		Name:     "output",
		Bindings: []gpu.Binding{{Slot: OutputImageBinding, Kind: gpu.StorageImageBinding, Count: 1}},
	}
}

// Output image size in pixels.
type Size struct {
	W, H int
}

// A renderer builds device state against a set of descriptor layouts and
// records per-frame work into command buffers.
type Renderer interface {
	// Build device-side state for the given layouts and scene.
	Create(size Size, layouts []gpu.Layout, sc *scene.Scene) error

	// Set the state used by subsequent Run calls.
	SetPushConstants(state State)

	// Record the work for one frame.
	Run(cmd *gpu.CommandBuffer, size Size, prof *gpu.Profiler, sets []*gpu.DescriptorSet)

	// Release device-side state. The device must be idle.
	Destroy()

	// Get renderer name.
	Name() string
}

// Implemented by renderers that can toggle any-hit processing. The device
// must be idle while toggling.
type AnyHitToggler interface {
	SetAnyHit(enabled bool)
	AnyHit() bool
}
