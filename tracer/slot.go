package tracer

import (
	"fmt"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/scene"
)

type slotState uint8

const (
	uninitialized slotState = iota
	active
	destroyed
)

// The device operations a Slot needs.
type Idler interface {
	WaitIdle() error
}

// Slot owns the renderer instances and tracks which one receives
// per-frame work. Instances are pre-created; only the active one holds
// device-side state.
type Slot struct {
	logger log.Logger

	device    Idler
	instances map[Kind]Renderer
	state     slotState
	active    Kind

	// Arguments for (re)creating renderers.
	size    Size
	layouts []gpu.Layout
	scene   *scene.Scene
}

// Create a slot for the supplied renderer instances. Kinds missing from
// the map cannot be activated.
func NewSlot(device Idler, instances map[Kind]Renderer) *Slot {
	return &Slot{
		logger:    log.New("renderer slot"),
		device:    device,
		instances: instances,
	}
}

// Returns true if a renderer for kind is available.
func (s *Slot) Supported(kind Kind) bool {
	_, ok := s.instances[kind]
	return ok && kind != None
}

// Set the arguments used whenever a renderer is (re)created.
func (s *Slot) SetTarget(size Size, layouts []gpu.Layout, sc *scene.Scene) {
	s.size = size
	s.layouts = append([]gpu.Layout(nil), layouts...)
	s.scene = sc
}

// Build the renderer for kind and make it active.
func (s *Slot) Create(kind Kind) error {
	if s.state == destroyed {
		return ErrSlotDestroyed
	}
	r, ok := s.instances[kind]
	if !ok || kind == None {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	if err := r.Create(s.size, s.layouts, s.scene); err != nil {
		s.state = uninitialized
		return fmt.Errorf("tracer: could not create %s renderer: %w", r.Name(), err)
	}
	s.active = kind
	s.state = active
	return nil
}

// Activate a different renderer. The device is drained before the
// outgoing renderer is destroyed.
func (s *Slot) SwitchTo(kind Kind) error {
	if s.state == destroyed {
		return ErrSlotDestroyed
	}
	if s.state == active && s.active == kind {
		return nil
	}
	if !s.Supported(kind) {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	if s.state == active {
		outgoing := s.instances[s.active]
		s.logger.Noticef("switching renderer, from %s to %s", outgoing.Name(), s.instances[kind].Name())

		if err := s.device.WaitIdle(); err != nil {
			return err
		}
		outgoing.Destroy()
	}

	return s.Create(kind)
}

// Destroy every renderer and re-create the active one against new layouts.
// Used after a scene load changed the descriptor layouts.
func (s *Slot) Rebuild(size Size, layouts []gpu.Layout, sc *scene.Scene) error {
	if s.state == destroyed {
		return ErrSlotDestroyed
	}

	if err := s.device.WaitIdle(); err != nil {
		return err
	}
	if s.state == active {
		s.instances[s.active].Destroy()
	}

	s.SetTarget(size, layouts, sc)
	if s.state != active {
		return nil
	}
	return s.Create(s.active)
}

// Get the active renderer or nil.
func (s *Slot) Active() Renderer {
	if s.state != active {
		return nil
	}
	return s.instances[s.active]
}

// Get the active renderer kind.
func (s *Slot) Kind() Kind {
	if s.state != active {
		return None
	}
	return s.active
}

// Drain the device and destroy the active renderer. The slot cannot be
// used afterwards.
func (s *Slot) Close() error {
	if s.state == destroyed {
		return ErrSlotDestroyed
	}

	err := s.device.WaitIdle()
	if s.state == active {
		s.instances[s.active].Destroy()
	}
	s.state = destroyed
	s.active = None
	return err
}
