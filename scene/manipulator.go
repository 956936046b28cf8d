package scene

import (
	"github.com/soerenfi/raytracing/types"
)

const (
	// Coefficients for converting delta cursor movements to yaw/pitch camera angles.
	mouseSensitivityX float32 = 0.005
	mouseSensitivityY float32 = 0.005

	// Pan and dolly speed relative to the distance to the interest point.
	panSpeed   float32 = 0.002
	dollySpeed float32 = 0.005

	minDollyDistance float32 = 0.01
)

// The manipulation applied while a mouse button is held.
type ManipulatorMode uint8

const (
	Orbit ManipulatorMode = iota
	Pan
	Dolly
)

// Manipulator converts cursor motion into camera movement around the
// camera's interest point.
type Manipulator struct {
	camera  *Camera
	lastPos types.Vec2
}

func NewManipulator(camera *Camera) *Manipulator {
	return &Manipulator{camera: camera}
}

// Set the camera that receives the motion.
func (m *Manipulator) SetCamera(camera *Camera) {
	m.camera = camera
}

// Record the cursor position where a drag starts.
func (m *Manipulator) Begin(x, y float32) {
	m.lastPos = types.XY(x, y)
}

// Apply the cursor motion since the last call to Begin or Motion.
func (m *Manipulator) Motion(x, y float32, mode ManipulatorMode) {
	newPos := types.XY(x, y)
	delta := m.lastPos.Sub(newPos)
	m.lastPos = newPos

	switch mode {
	case Orbit:
		m.orbit(delta[0]*mouseSensitivityX, delta[1]*mouseSensitivityY)
	case Pan:
		m.pan(delta[0], delta[1])
	case Dolly:
		m.dolly(delta[1])
	}
}

// Rotate the eye around the interest point.
func (m *Manipulator) orbit(yaw, pitch float32) {
	c := m.camera
	offset := c.Position.Sub(c.LookAt)
	right := offset.Cross(c.Up).Normalize()

	yawQuat := types.QuatFromAxisAngle(c.Up, yaw)
	pitchQuat := types.QuatFromAxisAngle(right, pitch)
	orientQuat := yawQuat.Mul(pitchQuat).Normalize()

	rotated := orientQuat.Rotate(offset)

	// Refuse to flip over the poles
	if rotated.Normalize().Cross(c.Up).Len() < 0.01 {
		rotated = yawQuat.Rotate(offset)
	}

	c.Position = c.LookAt.Add(rotated)
	c.Update()
}

// Move eye and interest point in the view plane.
func (m *Manipulator) pan(dx, dy float32) {
	c := m.camera
	dir := c.LookAt.Sub(c.Position)
	dist := dir.Len()
	right := dir.Cross(c.Up).Normalize()
	up := right.Cross(dir).Normalize()

	move := right.Mul(dx * dist * panSpeed).Add(up.Mul(-dy * dist * panSpeed))
	c.Position = c.Position.Add(move)
	c.LookAt = c.LookAt.Add(move)
	c.Update()
}

// Move the eye towards the interest point.
func (m *Manipulator) dolly(d float32) {
	c := m.camera
	dir := c.LookAt.Sub(c.Position)
	dist := dir.Len()

	newDist := dist * (1 - d*dollySpeed)
	if newDist < minDollyDistance {
		newDist = minDollyDistance
	}
	c.Position = c.LookAt.Sub(dir.Normalize().Mul(newDist))
	c.Update()
}
