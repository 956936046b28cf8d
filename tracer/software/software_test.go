package software

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/types"
)

// A large quad at z = -5 that covers the whole view of a camera at the
// origin looking down -Z.
func wallScene(mat scene.Material) *scene.Scene {
	sc := scene.New()
	sc.Materials = append(sc.Materials, mat)
	sc.Meshes = append(sc.Meshes, scene.PrimMesh{
		Name:      "wall",
		Material:  0,
		Positions: []types.Vec3{{-100, -100, -5}, {100, -100, -5}, {100, 100, -5}, {-100, 100, -5}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
		Bounds:    scene.Bounds{Min: types.XYZ(-100, -100, -5), Max: types.XYZ(100, 100, -5)},
	})
	sc.AddInstance("wall", 0, types.Ident4())
	return sc
}

type testFrame struct {
	device  *gpu.SoftwareDevice
	size    tracer.Size
	layouts []gpu.Layout
	sets    []*gpu.DescriptorSet
	out     *gpu.Image
	sky     *gpu.Buffer[env.SunAndSky]
	sc      *scene.Scene
}

func newTestFrame(t *testing.T, sc *scene.Scene, size tracer.Size) *testFrame {
	camera := scene.NewCamera(45)
	camera.SetupProjection(float32(size.W) / float32(size.H))
	camera.SetLookAt(types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), types.XYZ(0, 1, 0))

	accel := scene.BuildAccel(sc)
	hdr := env.NewHDR()
	f := &testFrame{
		device: gpu.NewSoftwareDevice("test"),
		size:   size,
		out:    gpu.NewImage(size.W, size.H),
		sky:    gpu.NewBuffer(env.DefaultSunAndSky()),
		sc:     sc,
	}
	t.Cleanup(f.device.Close)

	f.layouts = make([]gpu.Layout, tracer.NumSets)
	f.layouts[tracer.AccelSet] = accel.Layout()
	f.layouts[tracer.OutputSet] = tracer.OutputLayout()
	f.layouts[tracer.SceneSet] = sc.Layout()
	f.layouts[tracer.EnvSet] = hdr.Layout()

	f.sets = make([]*gpu.DescriptorSet, tracer.NumSets)
	for i, layout := range f.layouts {
		f.sets[i] = gpu.NewDescriptorSet(layout)
	}
	f.sets[tracer.AccelSet].Bind(scene.TlasBinding, accel)
	f.sets[tracer.OutputSet].Bind(tracer.OutputImageBinding, f.out)
	f.sets[tracer.SceneSet].Bind(scene.CameraBinding, gpu.NewBuffer(*camera))
	f.sets[tracer.SceneSet].Bind(scene.MaterialBinding, sc.Materials)
	f.sets[tracer.SceneSet].Bind(scene.InstanceBinding, sc)
	f.sets[tracer.EnvSet].Bind(env.SunSkyBinding, f.sky)
	f.sets[tracer.EnvSet].Bind(env.HdrBinding, hdr)
	f.sets[tracer.EnvSet].Bind(env.ImportanceBinding, hdr)
	return f
}

// Render a frame and wait for it to complete.
func (f *testFrame) render(r tracer.Renderer, state tracer.State) error {
	state.Size = f.size
	r.SetPushConstants(state)
	cmd := f.device.Begin("frame")
	r.Run(cmd, f.size, gpu.NewProfiler(), f.sets)
	if err := f.device.Submit(cmd); err != nil {
		return err
	}
	return f.device.WaitIdle()
}

func renderers() []tracer.Renderer {
	return []tracer.Renderer{NewPipeline(3), NewQuery(2)}
}

func TestDebugBaseColor(t *testing.T) {
	red := scene.Material{BaseColor: types.XYZ(1, 0, 0), Alpha: 1, Roughness: 1}

	for _, r := range renderers() {
		f := newTestFrame(t, wallScene(red), tracer.Size{W: 13, H: 7})
		if err := r.Create(f.size, f.layouts, f.sc); err != nil {
			t.Fatal(err)
		}

		state := tracer.DefaultState()
		state.DebugMode = tracer.DebugBaseColor
		if err := f.render(r, state); err != nil {
			t.Fatalf("[%s] %s", r.Name(), err)
		}

		for i, px := range f.out.Pix {
			if px != types.XYZW(1, 0, 0, 1) {
				t.Fatalf("[%s] expected pixel %d to be red; got %v", r.Name(), i, px)
			}
		}
	}
}

func TestProgressiveAccumulation(t *testing.T) {
	type spec struct {
		frame      int
		multiplier float32
		accumulate bool
		exp        float32
	}
	specs := []spec{
		{0, 1, false, 1},
		{1, 3, false, 2},
		{2, 5, false, 3},
		{3, 3, false, 3},
		// Reset discards the image
		{0, 4, false, 4},
		// Accumulating resets blend with the previous image
		{0, 2, true, 3},
	}

	for _, r := range renderers() {
		// An empty scene so every ray sees the constant environment
		f := newTestFrame(t, scene.New(), tracer.Size{W: 4, H: 4})
		if err := r.Create(f.size, f.layouts, f.sc); err != nil {
			t.Fatal(err)
		}

		for index, s := range specs {
			state := tracer.DefaultState()
			state.Frame = s.frame
			state.HdrMultiplier = s.multiplier
			state.Accumulate = s.accumulate
			if err := f.render(r, state); err != nil {
				t.Fatalf("[%s spec %d] %s", r.Name(), index, err)
			}

			got := f.out.At(2, 1)[0]
			if math.Abs(float64(got-s.exp)) > 1e-5 {
				t.Fatalf("[%s spec %d] expected accumulated value %f; got %f", r.Name(), index, s.exp, got)
			}
		}
	}
}

func TestAnyHit(t *testing.T) {
	cutout := scene.Material{BaseColor: types.XYZ(0, 1, 0), Alpha: 0.2, AlphaMask: true, AlphaCutoff: 0.5}

	type spec struct {
		renderer tracer.Renderer
		anyHit   bool
		expColor types.Vec4
	}
	specs := []spec{
		{NewPipeline(1), true, types.XYZW(0, 0, 0, 1)},
		{NewPipeline(1), false, types.XYZW(0, 1, 0, 1)},
		{NewQuery(1), true, types.XYZW(0, 0, 0, 1)},
	}

	for index, s := range specs {
		f := newTestFrame(t, wallScene(cutout), tracer.Size{W: 4, H: 4})
		if toggler, ok := s.renderer.(tracer.AnyHitToggler); ok {
			toggler.SetAnyHit(s.anyHit)
		}
		if err := s.renderer.Create(f.size, f.layouts, f.sc); err != nil {
			t.Fatal(err)
		}

		state := tracer.DefaultState()
		state.DebugMode = tracer.DebugBaseColor
		if err := f.render(s.renderer, state); err != nil {
			t.Fatalf("[spec %d] %s", index, err)
		}
		if got := f.out.At(1, 1); got != s.expColor {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.expColor, got)
		}
	}

	if _, ok := tracer.Renderer(NewQuery(1)).(tracer.AnyHitToggler); ok {
		t.Fatal("expected the query renderer to have no any-hit toggle")
	}
}

func TestRenderersAgree(t *testing.T) {
	mat := scene.Material{BaseColor: types.XYZ(0.5, 0.6, 0.7), Alpha: 1, Roughness: 0.4, Metallic: 0.3}
	sc := wallScene(mat)

	state := tracer.DefaultState()
	state.MaxSamples = 2
	state.MaxDepth = 3

	var images [][]types.Vec4
	for _, r := range renderers() {
		f := newTestFrame(t, sc, tracer.Size{W: 9, H: 9})
		if err := r.Create(f.size, f.layouts, sc); err != nil {
			t.Fatal(err)
		}
		if err := f.render(r, state); err != nil {
			t.Fatal(err)
		}
		images = append(images, f.out.Pix)
	}

	for i := range images[0] {
		if images[0][i] != images[1][i] {
			t.Fatalf("expected identical output for pixel %d; got %v and %v", i, images[0][i], images[1][i])
		}
	}
}

func TestStaleLayout(t *testing.T) {
	for _, r := range renderers() {
		f := newTestFrame(t, scene.New(), tracer.Size{W: 2, H: 2})
		if err := r.Create(f.size, f.layouts, f.sc); err != nil {
			t.Fatal(err)
		}

		// The scene set changes layout without rebuilding the renderer
		f.sets[tracer.SceneSet].Reset(gpu.Layout{Name: "scene", Bindings: []gpu.Binding{{Slot: 4, Kind: gpu.TextureBinding, Count: 8}}})

		err := f.render(r, tracer.DefaultState())
		if !errors.Is(err, gpu.ErrDeviceLost) {
			t.Fatalf("[%s] expected device to be lost; got %v", r.Name(), err)
		}
	}
}

func TestRunBeforeCreate(t *testing.T) {
	for _, r := range renderers() {
		f := newTestFrame(t, scene.New(), tracer.Size{W: 2, H: 2})
		if err := f.render(r, tracer.DefaultState()); !errors.Is(err, gpu.ErrDeviceLost) {
			t.Fatalf("[%s] expected device to be lost; got %v", r.Name(), err)
		}
	}

	r := NewQuery(1)
	if err := r.Create(tracer.Size{W: 1, H: 1}, nil, scene.New()); err == nil {
		t.Fatal("expected an error creating a renderer without descriptor layouts")
	}
}

func TestDebugModes(t *testing.T) {
	mat := scene.Material{BaseColor: types.XYZ(0.2, 0.4, 0.6), Alpha: 0.7, Metallic: 0.25, Roughness: 0.75, Emissive: types.XYZ(3, 2, 1)}

	type spec struct {
		mode     tracer.DebugMode
		expColor types.Vec3
	}
	specs := []spec{
		{tracer.DebugMetallic, types.XYZ(0.25, 0.25, 0.25)},
		{tracer.DebugAlpha, types.XYZ(0.7, 0.7, 0.7)},
		{tracer.DebugRoughness, types.XYZ(0.75, 0.75, 0.75)},
		{tracer.DebugEmissive, types.XYZ(3, 2, 1)},
		// The wall faces +Z
		{tracer.DebugNormal, types.XYZ(0.5, 0.5, 1)},
	}

	f := newTestFrame(t, wallScene(mat), tracer.Size{W: 3, H: 3})
	r := NewPipeline(1)
	if err := r.Create(f.size, f.layouts, f.sc); err != nil {
		t.Fatal(err)
	}

	for index, s := range specs {
		state := tracer.DefaultState()
		state.DebugMode = s.mode
		if err := f.render(r, state); err != nil {
			t.Fatal(err)
		}
		got := f.out.At(1, 1).Vec3()
		if got.Sub(s.expColor).Len() > 1e-4 {
			t.Fatalf("[spec %d] expected %s to render %v; got %v", index, s.mode, s.expColor, got)
		}
	}
}

func TestFireflyClamp(t *testing.T) {
	type spec struct {
		in        types.Vec3
		threshold float32
		expLum    float32
	}
	specs := []spec{
		{types.XYZ(10, 10, 10), 1, 1},
		{types.XYZ(0.5, 0.5, 0.5), 1, 0.5},
		{types.XYZ(10, 10, 10), 0, 10},
	}

	for index, s := range specs {
		out := clampFirefly(s.in, s.threshold)
		lum := out[0]*0.212671 + out[1]*0.715160 + out[2]*0.072169
		if math.Abs(float64(lum-s.expLum)) > 1e-3 {
			t.Fatalf("[spec %d] expected luminance %f; got %f", index, s.expLum, lum)
		}
	}
}

func TestRowScheduler(t *testing.T) {
	type spec struct {
		frameH   int
		rTime1   time.Duration
		rTime2   time.Duration
		expRows1 int
		expRows2 int
	}
	specs := []spec{
		// First call splits the rows evenly
		{10, 0, 0, 5, 5},
		// Second call should use the render times to assign rows
		{10, time.Duration(1), time.Duration(5), 9, 1},
		// This time worker 2 performed much better
		{10, time.Duration(5), time.Duration(1), 7, 3},
	}

	sch := newRowScheduler(2)
	for index, s := range specs {
		if index > 0 {
			sch.Record(0, s.rTime1)
			sch.Record(1, s.rTime2)
		}
		blockAssignment := sch.Schedule(s.frameH)

		if blockAssignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected worker 0 to be assigned %d rows; got %d", index, s.expRows1, blockAssignment[0])
		}
		if blockAssignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected worker 1 to be assigned %d rows; got %d", index, s.expRows2, blockAssignment[1])
		}
	}

	// Frames shorter than the worker count fall back to an even split
	if rows := newRowScheduler(4).Schedule(2); rows[0] != 2 || rows[1] != 0 {
		t.Fatalf("expected all rows to go to the first worker; got %v", rows)
	}
}
