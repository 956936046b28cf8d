package renderer

import (
	"github.com/soerenfi/raytracing/telemetry"
	"github.com/soerenfi/raytracing/tracer"
)

type Options struct {
	// Output surface dims.
	FrameW int
	FrameH int

	// Stop accumulating after this many frames.
	MaxFrames int

	// Max path depth.
	NumBounces int

	// Number of samples per pixel and frame.
	SamplesPerFrame int

	// Resolution divisor used while the camera is dragged.
	DescalingLevel int

	// The renderer to activate at startup and its any-hit setting.
	Renderer tracer.Kind
	AnyHit   bool

	// Exposure for tonemapping.
	Exposure float32

	// Draw the axis gizmo.
	ShowAxis bool

	// Optional device monitor shown in the window title.
	Monitor telemetry.Monitor
}

func DefaultOptions() Options {
	return Options{
		FrameW:          1280,
		FrameH:          720,
		MaxFrames:       DefaultMaxFrames,
		NumBounces:      10,
		SamplesPerFrame: 1,
		DescalingLevel:  2,
		Renderer:        tracer.Pipeline,
		AnyHit:          true,
		Exposure:        1,
		Monitor:         telemetry.Nop{},
	}
}
