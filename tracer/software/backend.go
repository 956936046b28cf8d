package software

import (
	"fmt"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
)

// State shared by both software renderers.
type backend struct {
	name   string
	logger log.Logger

	layouts []gpu.Layout
	size    tracer.Size
	state   tracer.State
	created bool
}

func newBackend(name string) backend {
	return backend{
		name:   name,
		logger: log.New(name),
		state:  tracer.DefaultState(),
	}
}

func (b *backend) Name() string {
	return b.name
}

func (b *backend) SetPushConstants(state tracer.State) {
	b.state = state
}

func (b *backend) create(size tracer.Size, layouts []gpu.Layout, sc *scene.Scene) error {
	if len(layouts) != tracer.NumSets {
		return fmt.Errorf("software: %s expects %d descriptor layouts; got %d", b.name, tracer.NumSets, len(layouts))
	}

	b.layouts = append([]gpu.Layout(nil), layouts...)
	b.size = size
	b.created = true

	sceneName := "<none>"
	if sc != nil {
		sceneName = sc.Name()
	}
	b.logger.Debugf("created %s renderer for scene %s (%dx%d)", b.name, sceneName, size.W, size.H)
	return nil
}

func (b *backend) destroy() {
	b.layouts = nil
	b.created = false
}

// Snapshot of the recording-time arguments of a Run call.
type frameArgs struct {
	state   tracer.State
	size    tracer.Size
	layouts []gpu.Layout
	created bool
}

func (b *backend) record(size tracer.Size) frameArgs {
	return frameArgs{
		state:   b.state,
		size:    size,
		layouts: b.layouts,
		created: b.created,
	}
}

// Resolve the descriptor sets into a frame context. Sets whose layout no
// longer matches the layouts the renderer was created with are rejected.
func (args frameArgs) bind(sets []*gpu.DescriptorSet) (*frameContext, error) {
	if !args.created {
		return nil, tracer.ErrNotCreated
	}
	if len(sets) != len(args.layouts) {
		return nil, fmt.Errorf("%w: expected %d descriptor sets; got %d", gpu.ErrStaleLayout, len(args.layouts), len(sets))
	}
	for i, set := range sets {
		if !set.Layout().Equal(args.layouts[i]) {
			return nil, fmt.Errorf("%w: set %d is %s; pipeline expects %s", gpu.ErrStaleLayout, i, set.Layout(), args.layouts[i])
		}
	}

	fc := &frameContext{state: args.state, size: args.size}
	if fc.size.W < 1 || fc.size.H < 1 {
		return nil, fmt.Errorf("software: invalid render size %dx%d", fc.size.W, fc.size.H)
	}

	var err error
	if fc.accel, err = resource[*scene.Accel](sets[tracer.AccelSet], scene.TlasBinding); err != nil {
		return nil, err
	}
	if fc.out, err = resource[*gpu.Image](sets[tracer.OutputSet], tracer.OutputImageBinding); err != nil {
		return nil, err
	}
	if fc.out.Width < fc.size.W || fc.out.Height < fc.size.H {
		return nil, fmt.Errorf("software: render size %dx%d exceeds output image %dx%d", fc.size.W, fc.size.H, fc.out.Width, fc.out.Height)
	}

	camera, err := resource[*gpu.Buffer[scene.Camera]](sets[tracer.SceneSet], scene.CameraBinding)
	if err != nil {
		return nil, err
	}
	fc.camera = camera.Data()
	if fc.materials, err = resource[[]scene.Material](sets[tracer.SceneSet], scene.MaterialBinding); err != nil {
		return nil, err
	}

	sky, err := resource[*gpu.Buffer[env.SunAndSky]](sets[tracer.EnvSet], env.SunSkyBinding)
	if err != nil {
		return nil, err
	}
	fc.sky = sky.Data()
	if fc.hdr, err = resource[*env.HDR](sets[tracer.EnvSet], env.HdrBinding); err != nil {
		return nil, err
	}

	return fc, nil
}

// Get a typed resource from a descriptor set.
func resource[T any](set *gpu.DescriptorSet, slot uint32) (T, error) {
	var zero T
	res, err := set.Resource(slot)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("software: %s slot %d holds %T; expected %T", set.Layout().Name, slot, res, zero)
	}
	return typed, nil
}
