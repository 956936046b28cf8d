package software

import (
	"runtime"
	"sync"
	"time"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
)

// PipelineRenderer emulates a ray tracing pipeline: one ray generation
// invocation per pixel with an optional any-hit stage. Rows are split
// between workers by a feedback scheduler.
type PipelineRenderer struct {
	backend

	anyHit    bool
	workers   int
	scheduler *rowScheduler
}

// Create a pipeline renderer using the given number of workers; workers < 1
// selects one worker per CPU.
func NewPipeline(workers int) *PipelineRenderer {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &PipelineRenderer{
		backend: newBackend("RtxPipeline"),
		anyHit:  true,
		workers: workers,
	}
}

func (r *PipelineRenderer) Create(size tracer.Size, layouts []gpu.Layout, sc *scene.Scene) error {
	if err := r.create(size, layouts, sc); err != nil {
		return err
	}
	r.scheduler = newRowScheduler(r.workers)
	return nil
}

func (r *PipelineRenderer) Destroy() {
	r.destroy()
	r.scheduler = nil
}

// Enable or disable the any-hit stage. With any-hit disabled every
// surface is treated as opaque.
func (r *PipelineRenderer) SetAnyHit(enabled bool) {
	r.anyHit = enabled
}

func (r *PipelineRenderer) AnyHit() bool {
	return r.anyHit
}

func (r *PipelineRenderer) Run(cmd *gpu.CommandBuffer, size tracer.Size, prof *gpu.Profiler, sets []*gpu.DescriptorSet) {
	args := r.record(size)
	anyHit := r.anyHit
	scheduler := r.scheduler

	cmd.Record(r.name, func() error {
		fc, err := args.bind(sets)
		if err != nil {
			return err
		}
		if anyHit {
			fc.filter = alphaMaskFilter(fc.materials)
		}

		prof.BeginScope(r.name)
		defer prof.EndScope(r.name)
		r.traceRays(fc, scheduler)
		return nil
	})
}

// Dispatch one block of rows per worker and feed the block times back to
// the scheduler.
func (r *PipelineRenderer) traceRays(fc *frameContext, scheduler *rowScheduler) {
	blocks := scheduler.Schedule(fc.size.H)

	var wg sync.WaitGroup
	blockY := 0
	for worker, blockH := range blocks {
		if blockH == 0 {
			continue
		}
		wg.Add(1)
		go func(worker, blockY, blockH int) {
			defer wg.Done()
			start := time.Now()
			for y := blockY; y < blockY+blockH; y++ {
				for x := 0; x < fc.size.W; x++ {
					fc.renderPixel(x, y)
				}
			}
			scheduler.Record(worker, time.Since(start))
		}(worker, blockY, blockH)
		blockY += blockH
	}
	wg.Wait()
}
