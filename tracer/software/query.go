package software

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
)

// Edge length of a compute work group in pixels.
const workGroupSize = 8

// QueryRenderer emulates a compute shader issuing ray queries. The frame is
// covered by square work groups dispatched to a bounded pool of workers.
// Alpha masked surfaces are always tested.
type QueryRenderer struct {
	backend

	workers int
}

// Create a ray query renderer using the given number of workers; workers < 1
// selects one worker per CPU.
func NewQuery(workers int) *QueryRenderer {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &QueryRenderer{
		backend: newBackend("RayQuery"),
		workers: workers,
	}
}

func (r *QueryRenderer) Create(size tracer.Size, layouts []gpu.Layout, sc *scene.Scene) error {
	return r.create(size, layouts, sc)
}

func (r *QueryRenderer) Destroy() {
	r.destroy()
}

func (r *QueryRenderer) Run(cmd *gpu.CommandBuffer, size tracer.Size, prof *gpu.Profiler, sets []*gpu.DescriptorSet) {
	args := r.record(size)

	cmd.Record(r.name, func() error {
		fc, err := args.bind(sets)
		if err != nil {
			return err
		}
		fc.filter = alphaMaskFilter(fc.materials)

		prof.BeginScope(r.name)
		defer prof.EndScope(r.name)
		return r.dispatch(fc)
	})
}

func (r *QueryRenderer) dispatch(fc *frameContext) error {
	groupsX := (fc.size.W + workGroupSize - 1) / workGroupSize
	groupsY := (fc.size.H + workGroupSize - 1) / workGroupSize

	var g errgroup.Group
	g.SetLimit(r.workers)
	for gy := 0; gy < groupsY; gy++ {
		for gx := 0; gx < groupsX; gx++ {
			g.Go(func() error {
				x0, y0 := gx*workGroupSize, gy*workGroupSize
				x1, y1 := min(x0+workGroupSize, fc.size.W), min(y0+workGroupSize, fc.size.H)
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						fc.renderPixel(x, y)
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}
