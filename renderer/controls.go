package renderer

import (
	"sync"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/post"
	"github.com/soerenfi/raytracing/tracer"
)

// The user editable render settings.
type Settings struct {
	// Push state handed to the active renderer. Frame and Size are filled
	// in per frame.
	State tracer.State

	Aperture       float32
	MaxFrames      int
	DescalingLevel int

	Renderer tracer.Kind
	AnyHit   bool

	Sky      env.SunAndSky
	Tonemap  post.Settings
	ShowAxis bool
}

// A pending settings edit. Apply returns true if the edit invalidates the
// accumulated image.
type Control struct {
	Name  string
	Apply func(s *Settings) bool
}

func (c Control) String() string {
	return c.Name
}

// Controls collects settings edits and applies them once per frame.
type Controls struct {
	mu      sync.Mutex
	pending []Control
}

// Queue edits for the next pass.
func (c *Controls) Queue(ctrls ...Control) {
	c.mu.Lock()
	c.pending = append(c.pending, ctrls...)
	c.mu.Unlock()
}

// Get the number of queued edits.
func (c *Controls) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Apply all queued edits in order. Returns true if any edit changed the
// rendered image.
func (c *Controls) Pass(s *Settings) bool {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	changed := false
	for _, ctrl := range pending {
		if ctrl.Apply(s) {
			changed = true
		}
	}
	return changed
}

func SetAperture(aperture float32) Control {
	return Control{"aperture", func(s *Settings) bool {
		return setFloat(&s.Aperture, max(aperture, 0))
	}}
}

func SetMaxDepth(depth int) Control {
	return Control{"max depth", func(s *Settings) bool {
		return setInt(&s.State.MaxDepth, clampInt(depth, 1, 10))
	}}
}

func SetSamplesPerFrame(samples int) Control {
	return Control{"samples per frame", func(s *Settings) bool {
		return setInt(&s.State.MaxSamples, clampInt(samples, 1, 10))
	}}
}

func SetMaxFrames(frames int) Control {
	return Control{"max iterations", func(s *Settings) bool {
		return setInt(&s.MaxFrames, clampInt(frames, 1, 1000))
	}}
}

func SetDescalingLevel(level int) Control {
	return Control{"descaling", func(s *Settings) bool {
		return setInt(&s.DescalingLevel, ClampDescalingLevel(level))
	}}
}

// Change the descaling level by delta.
func StepDescalingLevel(delta int) Control {
	return Control{"descaling", func(s *Settings) bool {
		return setInt(&s.DescalingLevel, ClampDescalingLevel(s.DescalingLevel+delta))
	}}
}

func SetAccumulate(accumulate bool) Control {
	return Control{"accumulate", func(s *Settings) bool {
		return setBool(&s.State.Accumulate, accumulate)
	}}
}

func SetPbrMode(mode tracer.PbrMode) Control {
	return Control{"pbr mode", func(s *Settings) bool {
		if s.State.PbrMode == mode {
			return false
		}
		s.State.PbrMode = mode
		return true
	}}
}

func SetAnyHit(enabled bool) Control {
	return Control{"any-hit", func(s *Settings) bool {
		return setBool(&s.AnyHit, enabled)
	}}
}

func ToggleAnyHit() Control {
	return Control{"any-hit", func(s *Settings) bool {
		s.AnyHit = !s.AnyHit
		return true
	}}
}

func SetDebugMode(mode tracer.DebugMode) Control {
	return Control{"debug mode", func(s *Settings) bool {
		if mode < 0 || mode >= tracer.NumDebugModes || s.State.DebugMode == mode {
			return false
		}
		s.State.DebugMode = mode
		return true
	}}
}

func CycleDebugMode() Control {
	return Control{"debug mode", func(s *Settings) bool {
		s.State.DebugMode = s.State.DebugMode.Next()
		return true
	}}
}

// Set the heat map time bounds in nanoseconds. Only heat map rendering is
// affected.
func SetHeatmapBounds(minNs, maxNs int) Control {
	return Control{"heatmap bounds", func(s *Settings) bool {
		if maxNs < minNs {
			minNs, maxNs = maxNs, minNs
		}
		changed := setInt(&s.State.MinHeatmap, minNs)
		changed = setInt(&s.State.MaxHeatmap, maxNs) || changed
		return changed && s.State.DebugMode == tracer.DebugHeatmap
	}}
}

func SelectRenderer(kind tracer.Kind) Control {
	return Control{"renderer", func(s *Settings) bool {
		if kind == tracer.None || s.Renderer == kind {
			return false
		}
		s.Renderer = kind
		return true
	}}
}

func SetFireflyClamp(threshold float32) Control {
	return Control{"firefly clamp", func(s *Settings) bool {
		return setFloat(&s.State.FireflyClampThreshold, max(threshold, 0))
	}}
}

func SetHdrMultiplier(multiplier float32) Control {
	return Control{"hdr multiplier", func(s *Settings) bool {
		return setFloat(&s.State.HdrMultiplier, max(multiplier, 0))
	}}
}

func UseSunAndSky(inUse bool) Control {
	return Control{"sun & sky", func(s *Settings) bool {
		return setBool(&s.Sky.InUse, inUse)
	}}
}

func ToggleSunAndSky() Control {
	return Control{"sun & sky", func(s *Settings) bool {
		s.Sky.InUse = !s.Sky.InUse
		return true
	}}
}

// Edit the sun and sky parameters. The up axis is derived from the camera
// and cannot be edited.
func EditSky(name string, edit func(sky *env.SunAndSky)) Control {
	return Control{name, func(s *Settings) bool {
		before := s.Sky
		edit(&s.Sky)
		s.Sky.YIsUp = before.YIsUp
		return s.Sky != before
	}}
}

// Edit the tonemapper. Tonemapping runs on the accumulated image so these
// edits never restart accumulation.
func EditTonemap(name string, edit func(tm *post.Settings)) Control {
	return Control{name, func(s *Settings) bool {
		edit(&s.Tonemap)
		return false
	}}
}

func ToggleAxis() Control {
	return Control{"axis", func(s *Settings) bool {
		s.ShowAxis = !s.ShowAxis
		return false
	}}
}

func setInt(dst *int, v int) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func setFloat(dst *float32, v float32) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func setBool(dst *bool, v bool) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
