package scene

import (
	"fmt"

	"github.com/soerenfi/raytracing/types"
)

// The result of a screen space pick.
type PickResult struct {
	Hit       bool
	Instance  int
	Primitive int
	Position  types.Vec3
	Distance  float32
}

func (r PickResult) String() string {
	if !r.Hit {
		return "nothing picked"
	}
	return fmt.Sprintf("instance %d, primitive %d at (%3.3f, %3.3f, %3.3f)", r.Instance, r.Primitive, r.Position[0], r.Position[1], r.Position[2])
}

// Picker casts rays through the camera against the top level acceleration
// structure.
type Picker struct {
	accel *Accel
}

func NewPicker(accel *Accel) *Picker {
	return &Picker{accel: accel}
}

// Point the picker at a rebuilt acceleration structure.
func (p *Picker) SetAccel(accel *Accel) {
	p.accel = accel
}

// Pick at normalized screen coordinates (u, v) with (0, 0) being the
// top-left corner of the render region.
func (p *Picker) Pick(camera *Camera, u, v float32) PickResult {
	if p.accel == nil || u < 0 || u > 1 || v < 0 || v > 1 {
		return PickResult{}
	}

	origin, dir := camera.Ray(u, v)
	hit, ok := p.accel.Intersect(origin, dir, Infinity(), nil)
	if !ok {
		return PickResult{}
	}

	return PickResult{
		Hit:       true,
		Instance:  hit.Instance,
		Primitive: hit.Primitive,
		Position:  hit.Position,
		Distance:  hit.Distance,
	}
}
