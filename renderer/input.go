package renderer

import (
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/types"
)

// Keys understood by the viewer.
type Key uint8

const (
	KeyUnknown Key = iota
	KeyHome
	KeyF
	KeySpace
	KeyR
	KeyTab
	KeyA
	Key1
	Key2
	KeyH
	KeyD
	KeyS
	KeyPlus
	KeyMinus
	KeyEscape
)

type Action uint8

const (
	Release Action = iota
	Press
	Repeat
)

type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
	numMouseButtons
)

// Handle a key event. Key input is ignored on release and while an asset
// load is in flight.
func (r *Renderer) OnKey(key Key, action Action) {
	if action == Release || r.loads.Busy() {
		return
	}

	switch key {
	case KeyHome, KeyF:
		if err := r.FitCamera(); err != nil {
			r.logger.Warningf("could not fit camera: %s", err.Error())
		}
	case KeySpace:
		if _, err := r.Pick(r.cursor[0], r.cursor[1]); err != nil {
			r.logger.Warningf("could not pick: %s", err.Error())
		}
	case KeyR:
		r.ResetFrame()
	case KeyTab:
		r.showStats = !r.showStats
	case KeyA:
		r.Queue(ToggleAxis())
	case Key1:
		r.Queue(SelectRenderer(tracer.Pipeline))
	case Key2:
		r.Queue(SelectRenderer(tracer.Query))
	case KeyH:
		r.Queue(ToggleAnyHit())
	case KeyD:
		r.Queue(CycleDebugMode())
	case KeyS:
		r.Queue(ToggleSunAndSky())
	case KeyPlus:
		r.Queue(StepDescalingLevel(1))
	case KeyMinus:
		r.Queue(StepDescalingLevel(-1))
	case KeyEscape:
		r.quit = true
	}
}

// Handle a mouse button event. Releasing the last held button after a
// drag restores full resolution and restarts accumulation.
func (r *Renderer) OnMouseButton(button MouseButton, action Action) {
	if button >= numMouseButtons || r.loads.Busy() {
		return
	}

	if action != Release {
		r.buttons[button] = true
		r.manipulator.Begin(r.cursor[0], r.cursor[1])
		return
	}

	r.buttons[button] = false
	if !r.anyButtonHeld() && r.frame.Descaling {
		r.frame.Descaling = false
		r.frame.Reset()
	}
}

// Handle cursor motion. Dragging with a button held moves the camera at a
// reduced resolution.
func (r *Renderer) OnCursor(x, y float32) {
	r.cursor = types.XY(x, y)
	if r.loads.Busy() || !r.anyButtonHeld() {
		return
	}

	mode := scene.Orbit
	switch {
	case r.buttons[MouseLeft]:
	case r.buttons[MouseMiddle]:
		mode = scene.Pan
	default:
		mode = scene.Dolly
	}

	r.frame.Descaling = true
	r.manipulator.Motion(x, y, mode)
}

// Pick at the cursor position.
func (r *Renderer) OnDoubleClick() {
	if r.loads.Busy() {
		return
	}
	if _, err := r.Pick(r.cursor[0], r.cursor[1]); err != nil {
		r.logger.Warningf("could not pick: %s", err.Error())
	}
}

func (r *Renderer) anyButtonHeld() bool {
	for _, held := range r.buttons {
		if held {
			return true
		}
	}
	return false
}
