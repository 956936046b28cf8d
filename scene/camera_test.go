package scene

import (
	"math"
	"testing"

	"github.com/soerenfi/raytracing/types"
)

func TestCameraRayThroughCenter(t *testing.T) {
	cam := NewCamera(60)
	cam.SetupProjection(16.0 / 9.0)
	cam.SetLookAt(types.XYZ(0, 2, 5), types.XYZ(0, 2, 0), types.XYZ(0, 1, 0))

	origin, dir := cam.Ray(0.5, 0.5)
	if origin != cam.Position {
		t.Fatalf("expected ray origin to be the camera position; got %v", origin)
	}
	if !approxEqual(dir, types.XYZ(0, 0, -1), 1e-4) {
		t.Fatalf("expected center ray to point down -Z; got %v", dir)
	}

	// Top-left ray points up and to the left
	_, dir = cam.Ray(0, 0)
	if dir[0] >= 0 || dir[1] <= 0 {
		t.Fatalf("expected top-left ray to point up and left; got %v", dir)
	}
}

func TestCameraFit(t *testing.T) {
	cam := NewCamera(45)
	cam.SetLookAt(types.XYZ(0, 0, 1), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0))

	bounds := Bounds{Min: types.XYZ(9, -1, -1), Max: types.XYZ(11, 1, 1)}
	cam.Fit(bounds)

	if !approxEqual(cam.LookAt, types.XYZ(10, 0, 0), 1e-5) {
		t.Fatalf("expected camera to look at the bounds center; got %v", cam.LookAt)
	}

	radius := bounds.Size().Len() * 0.5
	expDist := radius / float32(math.Sin(45*math.Pi/360))
	if dist := cam.Position.Sub(cam.LookAt).Len(); math.Abs(float64(dist-expDist)) > 1e-3 {
		t.Fatalf("expected camera distance %f; got %f", expDist, dist)
	}

	// Viewing direction is kept
	if !approxEqual(cam.LookAt.Sub(cam.Position).Normalize(), types.XYZ(0, 0, -1), 1e-5) {
		t.Fatalf("expected fit to keep the viewing direction; got %v", cam.LookAt.Sub(cam.Position))
	}

	before := cam.ViewMat
	cam.Fit(EmptyBounds())
	if !cam.ViewMat.Equal(before) {
		t.Fatal("expected fitting empty bounds to leave the camera untouched")
	}
}

func TestManipulator(t *testing.T) {
	type spec struct {
		mode        ManipulatorMode
		dx, dy      float32
		expDistance func(before float32) bool
		expLookAt   bool
	}
	specs := []spec{
		{Orbit, 50, 20, func(before float32) bool { return math.Abs(float64(before-10)) < 1e-3 }, true},
		{Dolly, 0, -40, func(before float32) bool { return before < 10 }, true},
		{Pan, 30, 10, func(before float32) bool { return math.Abs(float64(before-10)) < 1e-3 }, false},
	}

	for index, s := range specs {
		cam := NewCamera(45)
		cam.SetLookAt(types.XYZ(0, 0, 10), types.XYZ(0, 0, 0), types.XYZ(0, 1, 0))
		viewBefore := cam.ViewMat

		m := NewManipulator(cam)
		m.Begin(100, 100)
		m.Motion(100+s.dx, 100+s.dy, s.mode)

		if cam.ViewMat.Equal(viewBefore) {
			t.Fatalf("[spec %d] expected view matrix to change", index)
		}
		if dist := cam.Position.Sub(cam.LookAt).Len(); !s.expDistance(dist) {
			t.Fatalf("[spec %d] unexpected eye distance %f", index, dist)
		}
		if keepsLookAt := approxEqual(cam.LookAt, types.XYZ(0, 0, 0), 1e-5); keepsLookAt != s.expLookAt {
			t.Fatalf("[spec %d] expected interest point unchanged = %t; got %v", index, s.expLookAt, cam.LookAt)
		}
	}
}

func TestBoundsIntersect(t *testing.T) {
	b := Bounds{Min: types.XYZ(-1, -1, -1), Max: types.XYZ(1, 1, 1)}
	type spec struct {
		origin, dir types.Vec3
		tMax        float32
		expHit      bool
	}
	specs := []spec{
		{types.XYZ(0, 0, 5), types.XYZ(0, 0, -1), 100, true},
		{types.XYZ(0, 0, 5), types.XYZ(0, 0, -1), 3, false},
		{types.XYZ(0, 5, 5), types.XYZ(0, 0, -1), 100, false},
		{types.XYZ(0, 0, 0), types.XYZ(1, 0, 0), 100, true},
	}

	for index, s := range specs {
		invDir := types.XYZ(1/s.dir[0], 1/s.dir[1], 1/s.dir[2])
		if _, hit := b.Intersect(s.origin, invDir, s.tMax); hit != s.expHit {
			t.Fatalf("[spec %d] expected hit = %t; got %t", index, s.expHit, hit)
		}
	}
}
