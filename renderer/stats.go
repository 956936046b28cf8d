package renderer

import (
	"time"

	"github.com/soerenfi/raytracing/telemetry"
	"github.com/soerenfi/raytracing/tracer"
)

type FrameStats struct {
	// Index of the dispatched frame; -1 if nothing was rendered.
	Frame int

	// Name of the renderer that produced the frame.
	Renderer string

	// The rendered size and the region it was presented in.
	Size   tracer.Size
	Region Region

	// Render time for the frame and the post processing pass.
	RenderTime  time.Duration
	TonemapTime time.Duration

	// Total time for the whole step.
	FrameTime time.Duration

	// Last sample of the attached monitor.
	Monitor telemetry.Stats
}
