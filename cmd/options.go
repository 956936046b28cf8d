package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/post"
	"github.com/soerenfi/raytracing/renderer"
	"github.com/soerenfi/raytracing/telemetry"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/tracer/software"
	"github.com/soerenfi/raytracing/types"
	"github.com/urfave/cli"
)

// Flags shared by the view and render commands.
func RendererFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:   "width",
			Value:  1280,
			Usage:  "frame width",
			EnvVar: "RTV_WIDTH",
		},
		cli.IntFlag{
			Name:   "height",
			Value:  720,
			Usage:  "frame height",
			EnvVar: "RTV_HEIGHT",
		},
		cli.IntFlag{
			Name:   "max-frames",
			Value:  renderer.DefaultMaxFrames,
			Usage:  "stop accumulating after this many frames",
			EnvVar: "RTV_MAX_FRAMES",
		},
		cli.IntFlag{
			Name:   "num-bounces",
			Value:  10,
			Usage:  "max path depth",
			EnvVar: "RTV_NUM_BOUNCES",
		},
		cli.IntFlag{
			Name:   "spp",
			Value:  1,
			Usage:  "samples per pixel and frame",
			EnvVar: "RTV_SPP",
		},
		cli.IntFlag{
			Name:   "descaling",
			Value:  2,
			Usage:  "resolution divisor while moving the camera (1-8)",
			EnvVar: "RTV_DESCALING",
		},
		cli.StringFlag{
			Name:   "renderer",
			Value:  "pipeline",
			Usage:  "initial renderer (pipeline or query)",
			EnvVar: "RTV_RENDERER",
		},
		cli.BoolFlag{
			Name:   "no-ray-query",
			Usage:  "disable the ray query renderer",
			EnvVar: "RTV_NO_RAY_QUERY",
		},
		cli.BoolFlag{
			Name:  "no-any-hit",
			Usage: "disable the any-hit stage of the pipeline renderer",
		},
		cli.IntFlag{
			Name:   "workers",
			Value:  runtime.NumCPU(),
			Usage:  "number of render workers",
			EnvVar: "RTV_WORKERS",
		},
		cli.Float64Flag{
			Name:   "exposure",
			Value:  1.0,
			Usage:  "camera exposure for tone-mapping",
			EnvVar: "RTV_EXPOSURE",
		},
		cli.BoolFlag{
			Name:  "axis",
			Usage: "draw the axis gizmo",
		},
		cli.BoolFlag{
			Name:   "monitor",
			Usage:  "show process statistics in the window title",
			EnvVar: "RTV_MONITOR",
		},
		cli.StringFlag{
			Name:   "hdr",
			Usage:  "HDR environment to load after the scene",
			EnvVar: "RTV_HDR",
		},
		cli.StringFlag{
			Name:  "region",
			Usage: "render into part of the window only (x,y,w,h)",
		},
		cli.Float64Flag{
			Name:  "aperture",
			Usage: "camera lens aperture; 0 disables depth of field",
		},
		cli.StringFlag{
			Name:  "pbr-mode",
			Value: "disney",
			Usage: "material model (disney or gltf)",
		},
		cli.BoolFlag{
			Name:  "no-accumulate",
			Usage: "discard the previous image when accumulation restarts",
		},
		cli.Float64Flag{
			Name:  "hdr-multiplier",
			Usage: "HDR environment intensity multiplier",
		},
		cli.Float64Flag{
			Name:  "firefly-clamp",
			Usage: "max luminance of a single sample (defaults to 4x the environment integral)",
		},
		cli.IntFlag{
			Name:  "heatmap-min",
			Usage: "lower heat map bound in ns per pixel",
		},
		cli.IntFlag{
			Name:  "heatmap-max",
			Value: 65000,
			Usage: "upper heat map bound in ns per pixel",
		},
		cli.StringFlag{
			Name:  "sun-direction",
			Usage: "sun direction for the analytic sky (x,y,z)",
		},
		cli.Float64Flag{
			Name:  "brightness",
			Value: 1.0,
			Usage: "tonemapper brightness",
		},
		cli.Float64Flag{
			Name:  "contrast",
			Value: 1.0,
			Usage: "tonemapper contrast",
		},
		cli.Float64Flag{
			Name:  "saturation",
			Value: 1.0,
			Usage: "tonemapper saturation",
		},
		cli.Float64Flag{
			Name:  "vignette",
			Usage: "tonemapper vignette strength",
		},
		cli.BoolFlag{
			Name:  "auto-exposure",
			Usage: "derive the exposure from the average luminance",
		},
	}
}

// Translate the render settings flags that were explicitly set into
// settings edits.
func settingsControls(ctx *cli.Context) ([]renderer.Control, error) {
	var ctrls []renderer.Control

	if ctx.IsSet("aperture") {
		ctrls = append(ctrls, renderer.SetAperture(float32(ctx.Float64("aperture"))))
	}
	if ctx.IsSet("pbr-mode") {
		switch strings.ToLower(ctx.String("pbr-mode")) {
		case "disney":
			ctrls = append(ctrls, renderer.SetPbrMode(tracer.PbrDisney))
		case "gltf":
			ctrls = append(ctrls, renderer.SetPbrMode(tracer.PbrGltf))
		default:
			return nil, fmt.Errorf("unknown pbr mode %q", ctx.String("pbr-mode"))
		}
	}
	if ctx.Bool("no-accumulate") {
		ctrls = append(ctrls, renderer.SetAccumulate(false))
	}
	if ctx.IsSet("hdr-multiplier") {
		ctrls = append(ctrls, renderer.SetHdrMultiplier(float32(ctx.Float64("hdr-multiplier"))))
	}
	if ctx.IsSet("firefly-clamp") {
		ctrls = append(ctrls, renderer.SetFireflyClamp(float32(ctx.Float64("firefly-clamp"))))
	}
	if ctx.IsSet("heatmap-min") || ctx.IsSet("heatmap-max") {
		ctrls = append(ctrls, renderer.SetHeatmapBounds(ctx.Int("heatmap-min"), ctx.Int("heatmap-max")))
	}

	if ctx.IsSet("sun-direction") {
		dir, err := parseVec3(ctx.String("sun-direction"))
		if err != nil {
			return nil, err
		}
		if dir.Len() == 0 {
			return nil, errors.New("sun direction must not be zero")
		}
		ctrls = append(ctrls, renderer.EditSky("sun direction", func(sky *env.SunAndSky) {
			sky.SunDirection = dir.Normalize()
		}))
	}

	if anySet(ctx, "brightness", "contrast", "saturation", "vignette", "auto-exposure") {
		brightness := float32(ctx.Float64("brightness"))
		contrast := float32(ctx.Float64("contrast"))
		saturation := float32(ctx.Float64("saturation"))
		vignette := float32(ctx.Float64("vignette"))
		autoExposure := ctx.Bool("auto-exposure")
		ctrls = append(ctrls, renderer.EditTonemap("tonemapper", func(tm *post.Settings) {
			tm.Brightness = brightness
			tm.Contrast = contrast
			tm.Saturation = saturation
			tm.Vignette = vignette
			tm.AutoExposure = autoExposure
		}))
	}

	return ctrls, nil
}

func anySet(ctx *cli.Context, names ...string) bool {
	for _, name := range names {
		if ctx.IsSet(name) {
			return true
		}
	}
	return false
}

// Parse an "x,y,w,h" render region.
func parseRegion(value string) (renderer.Region, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return renderer.Region{}, fmt.Errorf("invalid region %q; expected x,y,w,h", value)
	}

	var dims [4]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return renderer.Region{}, fmt.Errorf("invalid region %q; expected x,y,w,h", value)
		}
		dims[i] = v
	}
	if dims[2] == 0 || dims[3] == 0 {
		return renderer.Region{}, fmt.Errorf("invalid region %q; width and height must be positive", value)
	}
	return renderer.Region{X: dims[0], Y: dims[1], W: dims[2], H: dims[3]}, nil
}

// Parse an "x,y,z" vector.
func parseVec3(value string) (types.Vec3, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return types.Vec3{}, fmt.Errorf("invalid vector %q; expected x,y,z", value)
	}

	var v types.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return types.Vec3{}, fmt.Errorf("invalid vector %q; expected x,y,z", value)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseKind(name string) (tracer.Kind, error) {
	switch name {
	case "pipeline", "rtx":
		return tracer.Pipeline, nil
	case "query", "rayquery":
		return tracer.Query, nil
	}
	return tracer.None, fmt.Errorf("unknown renderer %q", name)
}

// Build renderer options from the command flags.
func parseOptions(ctx *cli.Context) (renderer.Options, error) {
	kind, err := parseKind(ctx.String("renderer"))
	if err != nil {
		return renderer.Options{}, err
	}

	opts := renderer.Options{
		FrameW:          ctx.Int("width"),
		FrameH:          ctx.Int("height"),
		MaxFrames:       ctx.Int("max-frames"),
		NumBounces:      ctx.Int("num-bounces"),
		SamplesPerFrame: ctx.Int("spp"),
		DescalingLevel:  ctx.Int("descaling"),
		Renderer:        kind,
		AnyHit:          !ctx.Bool("no-any-hit"),
		Exposure:        float32(ctx.Float64("exposure")),
		ShowAxis:        ctx.Bool("axis"),
		Monitor:         telemetry.Nop{},
	}
	if ctx.Bool("monitor") {
		opts.Monitor = telemetry.NewRuntime()
	}
	return opts, nil
}

// Create the device and the renderer driving it.
func setupRenderer(ctx *cli.Context) (*renderer.Renderer, error) {
	opts, err := parseOptions(ctx)
	if err != nil {
		return nil, err
	}

	workers := ctx.Int("workers")
	renderers := map[tracer.Kind]tracer.Renderer{
		tracer.Pipeline: software.NewPipeline(workers),
	}
	if !ctx.Bool("no-ray-query") {
		renderers[tracer.Query] = software.NewQuery(workers)
	}

	ctrls, err := settingsControls(ctx)
	if err != nil {
		return nil, err
	}
	var region *renderer.Region
	if value := ctx.String("region"); value != "" {
		parsed, err := parseRegion(value)
		if err != nil {
			return nil, err
		}
		region = &parsed
	}

	device := gpu.NewSoftwareDevice("software")
	r, err := renderer.New(device, renderers, opts)
	if err != nil {
		device.Close()
		return nil, err
	}

	r.Queue(ctrls...)
	if region != nil {
		r.SetRenderRegion(*region)
	}
	return r, nil
}

// Load the scene given as the first argument and the --hdr environment,
// waiting for each load to finish.
func loadAssets(ctx *cli.Context, r *renderer.Renderer) error {
	var paths []string
	if ctx.NArg() > 0 {
		paths = append(paths, ctx.Args().First())
	}
	if hdr := ctx.String("hdr"); hdr != "" {
		paths = append(paths, hdr)
	}

	for _, path := range paths {
		if err := r.LoadAsset(path); err != nil {
			return err
		}
		if out, ok := r.WaitLoads(); ok && out.Err != nil {
			return out.Err
		}
	}
	return nil
}
