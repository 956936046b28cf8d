package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/post"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/telemetry"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/types"
)

const (
	appName = "raytracing"

	defaultFOV  float32 = 45
	axisSize            = 96
	titlePeriod         = time.Second
)

// The outcome of a single orchestration step.
type FrameResult struct {
	// Index of the dispatched frame or -1 if nothing was rendered.
	Frame int

	// The render size passed to the active renderer.
	Size tracer.Size

	// True if the step only drew the loading indicator.
	Busy bool

	// The presented image. It is reused by subsequent steps.
	Image *image.RGBA
}

// Renderer drives progressive rendering: it owns the frame state, the
// renderer slot, the device resources shared by the renderers and the
// asset load session.
type Renderer struct {
	logger log.Logger

	device   gpu.Device
	slot     *tracer.Slot
	loads    *LoadSession
	monitor  telemetry.Monitor
	profiler *gpu.Profiler

	controls Controls
	settings Settings
	frame    FrameState

	// Surface and region state. Requests are applied at the start of the
	// next step that is not busy.
	surfaceW, surfaceH int
	reqW, reqH         int
	region, reqRegion  Region
	autoRegion         bool

	// Values the last dispatched frame was rendered with.
	lastView   types.Mat4
	lastFOV    float32
	lastRegion Region

	sc          *scene.Scene
	accel       *scene.Accel
	hdr         *env.HDR
	camera      *scene.Camera
	manipulator *scene.Manipulator
	picker      *scene.Picker

	cameraBuf *gpu.Buffer[scene.Camera]
	skyBuf    *gpu.Buffer[env.SunAndSky]
	target    *gpu.Image
	sets      []*gpu.DescriptorSet

	axis    *post.Axis
	output  *image.RGBA
	busyImg *image.RGBA

	// Input state.
	buttons   [numMouseButtons]bool
	cursor    types.Vec2
	showStats bool
	quit      bool

	stats       FrameStats
	title       string
	titleAt     time.Time
	titleFrames int
	now         func() time.Time

	closed bool
}

// Create a renderer that drives the supplied renderer instances on device.
// The renderer selected by opts is created immediately; if it is not
// available the first available kind is used.
func New(device gpu.Device, renderers map[tracer.Kind]tracer.Renderer, opts Options) (*Renderer, error) {
	if len(renderers) == 0 {
		return nil, ErrNoRenderers
	}
	if opts.FrameW < 1 || opts.FrameH < 1 {
		return nil, fmt.Errorf("renderer: invalid frame size %dx%d", opts.FrameW, opts.FrameH)
	}
	if opts.Monitor == nil {
		opts.Monitor = telemetry.Nop{}
	}

	r := &Renderer{
		logger:     log.New("renderer"),
		device:     device,
		monitor:    opts.Monitor,
		profiler:   gpu.NewProfiler(),
		frame:      NewFrameState(opts.MaxFrames, opts.DescalingLevel),
		surfaceW:   opts.FrameW,
		surfaceH:   opts.FrameH,
		reqW:       opts.FrameW,
		reqH:       opts.FrameH,
		region:     FullRegion(opts.FrameW, opts.FrameH),
		autoRegion: true,
		sc:         scene.New(),
		hdr:        env.NewHDR(),
		camera:     scene.NewCamera(defaultFOV),
		axis:       post.NewAxis(axisSize),
		now:        time.Now,
	}
	r.reqRegion = r.region
	r.settings = r.defaultSettings(opts)

	r.accel = scene.BuildAccel(r.sc)
	r.picker = scene.NewPicker(r.accel)
	r.manipulator = scene.NewManipulator(r.camera)
	r.camera.SetupProjection(float32(r.region.W) / float32(r.region.H))
	r.camera.Aperture = r.settings.Aperture

	r.cameraBuf = gpu.NewBuffer(*r.camera)
	r.skyBuf = gpu.NewBuffer(r.settings.Sky)
	r.target = gpu.NewImage(opts.FrameW, opts.FrameH)
	r.output = image.NewRGBA(image.Rect(0, 0, opts.FrameW, opts.FrameH))

	r.sets = make([]*gpu.DescriptorSet, tracer.NumSets)
	r.sets[tracer.AccelSet] = gpu.NewDescriptorSet(r.accel.Layout())
	r.sets[tracer.OutputSet] = gpu.NewDescriptorSet(tracer.OutputLayout())
	r.sets[tracer.SceneSet] = gpu.NewDescriptorSet(r.sc.Layout())
	r.sets[tracer.EnvSet] = gpu.NewDescriptorSet(r.hdr.Layout())
	r.bindScene()
	r.bindOutput()
	r.bindEnvironment()

	r.slot = tracer.NewSlot(device, renderers)
	r.slot.SetTarget(r.targetSize(), r.layouts(), r.sc)
	kind, err := r.pickKind(opts.Renderer)
	if err != nil {
		return nil, err
	}
	if err = r.slot.Create(kind); err != nil {
		return nil, err
	}
	r.settings.Renderer = kind
	r.syncAnyHit()

	r.loads = NewLoadSession(device, r)

	r.lastView = r.camera.ViewMat
	r.lastFOV = r.camera.FOV
	r.lastRegion = r.region
	r.titleAt = r.now()
	return r, nil
}

func (r *Renderer) defaultSettings(opts Options) Settings {
	state := tracer.DefaultState()
	if opts.NumBounces > 0 {
		state.MaxDepth = opts.NumBounces
	}
	if opts.SamplesPerFrame > 0 {
		state.MaxSamples = opts.SamplesPerFrame
	}
	state.FireflyClampThreshold = r.hdr.Integral() * 4

	tm := post.DefaultSettings()
	if opts.Exposure > 0 {
		tm.Exposure = opts.Exposure
	}

	return Settings{
		State:          state,
		MaxFrames:      r.frame.MaxFrames,
		DescalingLevel: r.frame.DescalingLevel,
		Renderer:       opts.Renderer,
		AnyHit:         opts.AnyHit,
		Sky:            env.DefaultSunAndSky(),
		Tonemap:        tm,
		ShowAxis:       opts.ShowAxis,
	}
}

// Select the requested kind or fall back to the first supported one.
func (r *Renderer) pickKind(requested tracer.Kind) (tracer.Kind, error) {
	if r.slot.Supported(requested) {
		return requested, nil
	}
	for _, kind := range []tracer.Kind{tracer.Pipeline, tracer.Query} {
		if r.slot.Supported(kind) {
			if requested != tracer.None {
				r.logger.Warningf("%s renderer not supported; using %s", requested, kind)
			}
			return kind, nil
		}
	}
	return tracer.None, fmt.Errorf("renderer: %w: %s", tracer.ErrUnsupportedKind, requested)
}

// Run one orchestration step: apply pending changes, render the next
// frame unless the frame budget is exhausted and post-process the result.
// While an asset load is in flight only the loading indicator is drawn.
func (r *Renderer) Frame(ctx context.Context) (FrameResult, error) {
	if r.closed {
		return FrameResult{Frame: -1}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return FrameResult{Frame: -1}, err
	}

	if r.loads.Busy() {
		return r.presentBusy(), nil
	}

	start := r.now()
	r.updateTitle(start)

	if out, ok := r.loads.TakeCompletion(); ok {
		r.logger.Debugf("applying load outcome: %s", out)
		r.frame.Reset()

		// A scene load may have placed the camera
		r.lastView = r.camera.ViewMat
		r.lastFOV = r.camera.FOV
		r.lastRegion = r.region
	}
	if err := r.applyControls(); err != nil {
		return FrameResult{Frame: -1}, err
	}
	r.applySurface()
	r.detectChanges()

	r.profiler.Reset()
	cmd := r.device.Begin("frame")
	r.updateUniforms(cmd)

	result := FrameResult{Frame: -1}
	active := r.slot.Active()
	if active != nil && !r.frame.Done() {
		size := r.region.RenderSize(&r.frame)
		state := r.settings.State
		state.Frame = r.frame.Next()
		state.Size = size

		active.SetPushConstants(state)
		active.Run(cmd, size, r.profiler, r.sets)
		result.Frame, result.Size = state.Frame, size
	}
	r.postProcess(cmd)

	if err := r.device.Submit(cmd); err != nil {
		return result, err
	}
	if err := r.device.WaitIdle(); err != nil {
		return result, err
	}
	r.frame.Advance()

	r.monitor.Refresh()
	r.stats = FrameStats{
		Frame:       result.Frame,
		Size:        result.Size,
		Region:      r.region,
		TonemapTime: r.profiler.Duration("tonemap"),
		FrameTime:   r.now().Sub(start),
		Monitor:     r.monitor.Stats(),
	}
	if active != nil {
		r.stats.Renderer = active.Name()
		r.stats.RenderTime = r.profiler.Duration(active.Name())
	}

	result.Image = r.output
	return result, nil
}

// Draw the loading indicator over a copy of the last presented image.
func (r *Renderer) presentBusy() FrameResult {
	if r.busyImg == nil || r.busyImg.Rect != r.output.Rect {
		r.busyImg = image.NewRGBA(r.output.Rect)
	}
	copy(r.busyImg.Pix, r.output.Pix)
	post.DrawBusy(r.busyImg, r.loads.Reason(), r.loads.Elapsed())
	return FrameResult{Frame: -1, Busy: true, Image: r.busyImg}
}

// Run the controls pass and apply the edited settings. Any change resets
// accumulation once.
func (r *Renderer) applyControls() error {
	prev := r.settings
	if !r.controls.Pass(&r.settings) {
		return nil
	}

	r.frame.MaxFrames = r.settings.MaxFrames
	r.frame.DescalingLevel = r.settings.DescalingLevel

	if r.settings.Renderer != r.slot.Kind() {
		if err := r.switchRenderer(r.settings.Renderer); err != nil {
			if !errors.Is(err, tracer.ErrUnsupportedKind) {
				return err
			}
			r.logger.Warningf("cannot select renderer: %s", err.Error())
			r.settings.Renderer = r.slot.Kind()
		}
	} else if r.settings.AnyHit != prev.AnyHit {
		if err := r.device.WaitIdle(); err != nil {
			return err
		}
		if !r.syncAnyHit() {
			r.logger.Warningf("%s renderer does not support toggling any-hit", r.slot.Kind())
		}
	}

	r.frame.Reset()
	return nil
}

// Apply pending surface and region requests.
func (r *Renderer) applySurface() {
	if r.reqW != r.surfaceW || r.reqH != r.surfaceH {
		r.surfaceW, r.surfaceH = r.reqW, r.reqH
		r.target.Resize(r.surfaceW, r.surfaceH)
		r.output = image.NewRGBA(image.Rect(0, 0, r.surfaceW, r.surfaceH))
		r.frame.Reset()
	}

	if r.autoRegion {
		r.region = FullRegion(r.surfaceW, r.surfaceH)
	} else {
		r.region = r.reqRegion.Clip(r.surfaceW, r.surfaceH)
	}
	if r.region != r.lastRegion {
		r.camera.SetupProjection(float32(r.region.W) / float32(r.region.H))
	}
}

// Reset accumulation if the camera or the render region changed since the
// last step.
func (r *Renderer) detectChanges() {
	if r.camera.ViewMat != r.lastView || r.camera.FOV != r.lastFOV {
		r.lastView = r.camera.ViewMat
		r.lastFOV = r.camera.FOV
		r.frame.Reset()
	}
	if r.region != r.lastRegion {
		r.lastRegion = r.region
		r.frame.Reset()
	}
}

func (r *Renderer) updateUniforms(cmd *gpu.CommandBuffer) {
	r.camera.Aperture = r.settings.Aperture
	r.settings.Sky.SyncUp(r.camera.Up)

	r.cameraBuf.Update(cmd, "camera", *r.camera)
	r.skyBuf.Update(cmd, "sun and sky", r.settings.Sky)
}

// Record the tonemapping and overlay pass.
func (r *Renderer) postProcess(cmd *gpu.CommandBuffer) {
	settings := r.settings.Tonemap
	settings.Zoom = 1
	if r.frame.Descaling {
		settings.Zoom = 1 / float32(ClampDescalingLevel(r.frame.DescalingLevel))
	}
	settings.RenderingRatio = types.XY(
		float32(r.target.Width)/float32(r.region.W),
		float32(r.target.Height)/float32(r.region.H),
	)
	tonemapper := post.Tonemapper{Settings: settings}

	src := r.target
	dst := r.output.SubImage(r.region.Rect()).(*image.RGBA)
	showAxis := r.settings.ShowAxis
	view := r.camera.ViewMat
	prof := r.profiler

	cmd.Record("tonemap", func() error {
		prof.BeginScope("tonemap")
		defer prof.EndScope("tonemap")

		tonemapper.Apply(src, dst)
		if showAxis {
			return r.axis.Draw(dst, view)
		}
		return nil
	})
}

func (r *Renderer) updateTitle(now time.Time) {
	r.titleFrames++
	elapsed := now.Sub(r.titleAt)
	if r.title != "" && elapsed < titlePeriod {
		return
	}

	fps := 0.0
	if elapsed > 0 {
		fps = float64(r.titleFrames) / elapsed.Seconds()
	}
	parts := []string{
		appName,
		r.sc.Name(),
		fmt.Sprintf("%dx%d", r.region.W, r.region.H),
		fmt.Sprintf("%.1f FPS", fps),
	}
	if name := r.monitor.Name(); name != "" {
		parts = append(parts, name)
	}
	if active := r.slot.Active(); active != nil {
		parts = append(parts, active.Name())
	}

	r.title = strings.Join(parts, " | ")
	r.titleAt = now
	r.titleFrames = 0
}

// Get the window title. It is refreshed at most once per second.
func (r *Renderer) Title() string {
	return r.title
}

// Get the stats of the last rendered step.
func (r *Renderer) Stats() FrameStats {
	return r.stats
}

// Get the current frame state.
func (r *Renderer) FrameState() FrameState {
	return r.frame
}

// Get a copy of the current settings.
func (r *Renderer) Settings() Settings {
	return r.settings
}

// Get the current render region.
func (r *Renderer) Region() Region {
	return r.region
}

// Queue settings edits for the next step.
func (r *Renderer) Queue(ctrls ...Control) {
	r.controls.Queue(ctrls...)
}

// Set the part of the surface that receives the rendered image. The
// change takes effect on the next step.
func (r *Renderer) SetRenderRegion(region Region) {
	r.reqRegion = region
	r.autoRegion = false
}

// Resize the output surface. The render region follows the surface unless
// SetRenderRegion was called.
func (r *Renderer) Resize(w, h int) {
	r.reqW, r.reqH = max(w, 1), max(h, 1)
}

// Restart accumulation.
func (r *Renderer) ResetFrame() {
	r.frame.Reset()
}

// Move the camera so the whole scene is visible.
func (r *Renderer) FitCamera() error {
	if r.loads.Busy() {
		return ErrBusy
	}
	r.camera.Fit(r.sc.Bounds())
	r.frame.Reset()
	return nil
}

// Pick the object under surface position (x, y) and make the hit point
// the camera interest point.
func (r *Renderer) Pick(x, y float32) (scene.PickResult, error) {
	if r.loads.Busy() {
		return scene.PickResult{}, ErrBusy
	}

	u := (x - float32(r.region.X)) / float32(r.region.W)
	v := (y - float32(r.region.Y)) / float32(r.region.H)
	res := r.picker.Pick(r.camera, u, v)
	if !res.Hit {
		r.logger.Info("nothing picked")
		return res, nil
	}

	r.logger.Infof("picked %s", res)
	r.camera.SetLookAt(r.camera.Position, res.Position, r.camera.Up)
	return res, nil
}

// Activate a different renderer.
func (r *Renderer) SwitchRenderer(kind tracer.Kind) error {
	if r.loads.Busy() {
		return ErrBusy
	}
	if err := r.switchRenderer(kind); err != nil {
		return err
	}
	r.frame.Reset()
	return nil
}

func (r *Renderer) switchRenderer(kind tracer.Kind) error {
	if err := r.slot.SwitchTo(kind); err != nil {
		return err
	}
	r.settings.Renderer = kind
	r.syncAnyHit()
	return nil
}

// Enable or disable the any-hit stage of the active renderer. Returns
// ErrAnyHitNotSupported if the active renderer has no any-hit stage.
func (r *Renderer) SetAnyHit(enabled bool) error {
	if r.loads.Busy() {
		return ErrBusy
	}
	toggler, ok := r.slot.Active().(tracer.AnyHitToggler)
	if !ok {
		return ErrAnyHitNotSupported
	}
	if err := r.device.WaitIdle(); err != nil {
		return err
	}

	toggler.SetAnyHit(enabled)
	r.settings.AnyHit = enabled
	r.frame.Reset()
	return nil
}

// Push the any-hit setting to the active renderer. Returns false if the
// renderer does not support it.
func (r *Renderer) syncAnyHit() bool {
	toggler, ok := r.slot.Active().(tracer.AnyHitToggler)
	if ok {
		toggler.SetAnyHit(r.settings.AnyHit)
	}
	return ok
}

// Start loading a scene or environment asset in the background.
func (r *Renderer) LoadAsset(pathToAsset string) error {
	if r.closed {
		return ErrClosed
	}
	return r.loads.Request(pathToAsset)
}

// Returns true while an asset load is in flight.
func (r *Renderer) Busy() bool {
	return r.loads.Busy()
}

// Block until the in-flight asset load has finished and return its
// outcome.
func (r *Renderer) WaitLoads() (Outcome, bool) {
	r.loads.Wait()
	return r.loads.LastOutcome()
}

// Load a glTF scene and rebuild everything that depends on it. Runs on
// the load task.
func (r *Renderer) LoadScene(pathToScene string) error {
	sc, err := scene.Load(pathToScene)
	if err != nil {
		return err
	}

	r.sc = sc
	r.accel = scene.BuildAccel(sc)
	r.picker.SetAccel(r.accel)
	r.setupCamera()
	r.bindScene()

	return r.slot.Rebuild(r.targetSize(), r.layouts(), sc)
}

// Load an HDR environment. The environment layout does not change so
// only its bindings are updated. Runs on the load task.
func (r *Renderer) LoadEnvironment(pathToHdr string) error {
	hdr, err := env.LoadHDR(pathToHdr)
	if err != nil {
		return err
	}

	r.hdr = hdr
	r.settings.State.FireflyClampThreshold = hdr.Integral() * 4
	r.settings.Sky.InUse = false
	r.bindEnvironment()
	return nil
}

// Place the camera as stored in the scene or fit it to the scene bounds.
func (r *Renderer) setupCamera() {
	setup, ok := r.sc.InitialCamera()
	if !ok {
		r.camera.Fit(r.sc.Bounds())
		return
	}
	if setup.FOV > 0 {
		r.camera.SetFOV(setup.FOV)
	}
	r.camera.SetLookAt(setup.Eye, setup.Center, setup.Up)
}

func (r *Renderer) bindScene() {
	accelSet := r.sets[tracer.AccelSet]
	accelSet.Reset(r.accel.Layout())
	accelSet.Bind(scene.TlasBinding, r.accel)

	sceneSet := r.sets[tracer.SceneSet]
	sceneSet.Reset(r.sc.Layout())
	sceneSet.Bind(scene.CameraBinding, r.cameraBuf)
	sceneSet.Bind(scene.MaterialBinding, r.sc.Materials)
	sceneSet.Bind(scene.InstanceBinding, r.sc)
	sceneSet.Bind(scene.TextureBinding, r.sc)
}

func (r *Renderer) bindOutput() {
	r.sets[tracer.OutputSet].Bind(tracer.OutputImageBinding, r.target)
}

func (r *Renderer) bindEnvironment() {
	envSet := r.sets[tracer.EnvSet]
	envSet.Bind(env.SunSkyBinding, r.skyBuf)
	envSet.Bind(env.HdrBinding, r.hdr)
	envSet.Bind(env.ImportanceBinding, r.hdr)
}

func (r *Renderer) layouts() []gpu.Layout {
	layouts := make([]gpu.Layout, len(r.sets))
	for i, set := range r.sets {
		layouts[i] = set.Layout()
	}
	return layouts
}

func (r *Renderer) targetSize() tracer.Size {
	return tracer.Size{W: r.target.Width, H: r.target.Height}
}

// Returns true once the user asked to quit.
func (r *Renderer) ShouldQuit() bool {
	return r.quit
}

// Returns true if the stats overlay is enabled.
func (r *Renderer) ShowStats() bool {
	return r.showStats
}

// Join any in-flight load, destroy the renderers and shut down the device.
func (r *Renderer) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true

	r.loads.Wait()
	err := r.slot.Close()
	if axisErr := r.axis.Close(); err == nil {
		err = axisErr
	}
	r.device.Close()
	return err
}
