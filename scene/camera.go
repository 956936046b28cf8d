package scene

import (
	"fmt"
	"math"

	"github.com/soerenfi/raytracing/types"
)

const (
	cameraNearPlane float32 = 0.1
	cameraFarPlane  float32 = 1000
)

// Stores the ray directions at the four corners of our camera frustrum. It
// is used as a shortcut for generating per pixel rays via interpolation of
// the corner rays.
type Frustrum [4]types.Vec4

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3

	ViewMat  types.Mat4
	ProjMat  types.Mat4
	Frustrum Frustrum

	// Vertical FOV in degrees.
	FOV float32

	Aspect float32

	// Lens radius; 0 is a pinhole camera. Rays converge at the interest
	// point distance.
	Aperture float32

	// Adjust the frustrum so that Y is inverted
	InvertY bool
}

func NewCamera(fov float32) *Camera {
	c := &Camera{
		ViewMat:  types.Ident4(),
		ProjMat:  types.Ident4(),
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
		Aspect:   1,
	}
	c.SetupProjection(1)
	return c
}

// Setup camera projection matrix.
func (c *Camera) SetupProjection(aspect float32) {
	if aspect <= 0 {
		aspect = 1
	}
	c.Aspect = aspect
	c.ProjMat = types.Perspective4(c.FOV, aspect, cameraNearPlane, cameraFarPlane)
	c.Update()
}

// Set the camera eye, interest point and up vector.
func (c *Camera) SetLookAt(eye, center, up types.Vec3) {
	c.Position = eye
	c.LookAt = center
	c.Up = up.Normalize()
	c.Update()
}

// Set the vertical field of view (in degrees).
func (c *Camera) SetFOV(fov float32) {
	c.FOV = fov
	c.SetupProjection(c.Aspect)
}

// Update the view matrix and frustrum after the camera has been moved.
func (c *Camera) Update() {
	c.ViewMat = types.LookAtV(c.Position, c.LookAt, c.Up)
	c.updateFrustrum()
}

// Move the camera so that the given bounds fill the view while keeping the
// current viewing direction.
func (c *Camera) Fit(bounds Bounds) {
	if !bounds.Valid() {
		return
	}

	dir := c.LookAt.Sub(c.Position).Normalize()
	if dir.Len() == 0 {
		dir = types.XYZ(0, 0, -1)
	}

	radius := bounds.Size().Len() * 0.5
	if radius == 0 {
		radius = 1
	}
	halfFov := float64(c.FOV) * math.Pi / 360.0
	dist := radius / float32(math.Sin(halfFov))

	center := bounds.Center()
	c.SetLookAt(center.Sub(dir.Mul(dist)), center, c.Up)
}

func (c *Camera) InvViewProjMat() types.Mat4 {
	return c.ProjMat.Mul4(c.ViewMat).Inv()
}

// Generate a primary ray for the normalized screen coordinates (u, v) where
// (0, 0) is the top-left corner.
func (c *Camera) Ray(u, v float32) (origin, dir types.Vec3) {
	top := c.Frustrum[0].Vec3().Lerp(c.Frustrum[1].Vec3(), u)
	bottom := c.Frustrum[2].Vec3().Lerp(c.Frustrum[3].Vec3(), u)
	return c.Position, top.Lerp(bottom, v).Normalize()
}

// Generate a primary ray through a thin lens. The lens sample (lu, lv) is in
// [0, 1).
func (c *Camera) LensRay(u, v, lu, lv float32) (origin, dir types.Vec3) {
	origin, dir = c.Ray(u, v)
	if c.Aperture <= 0 {
		return origin, dir
	}

	toFocus := c.LookAt.Sub(c.Position)
	forward := toFocus.Normalize()
	cosAngle := dir.Dot(forward)
	if cosAngle <= 0 {
		return origin, dir
	}
	focusPoint := origin.Add(dir.Mul(toFocus.Len() / cosAngle))

	right := forward.Cross(c.Up).Normalize()
	up := right.Cross(forward)
	radius := c.Aperture * float32(math.Sqrt(float64(lu)))
	sinTheta, cosTheta := math.Sincos(2 * math.Pi * float64(lv))

	origin = origin.Add(right.Mul(radius * float32(cosTheta))).Add(up.Mul(radius * float32(sinTheta)))
	return origin, focusPoint.Sub(origin).Normalize()
}

// Generate a ray vector for each corner of the camera frustrum by
// multiplying clip space vectors for each corner with the inv proj/view
// matrix, applying perspective and subtracting the camera eye position.
func (c *Camera) updateFrustrum() {
	var v types.Vec4
	invProjViewMat := c.InvViewProjMat()

	var yUp float32 = 1.0
	if c.InvertY {
		yUp = -1.0
	}

	v = invProjViewMat.Mul4x1(types.XYZW(-1, yUp, -1, 1))
	c.Frustrum[0] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, yUp, -1, 1))
	c.Frustrum[1] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(-1, -yUp, -1, 1))
	c.Frustrum[2] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, -yUp, -1, 1))
	c.Frustrum[3] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)
}
