package main

import (
	"os"

	"github.com/soerenfi/raytracing/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "raytracing"
	app.Usage = "progressive path tracing viewer for glTF scenes"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "log level (debug, info, notice, warning, error)",
			EnvVar: "RTV_LOG_LEVEL",
		},
		cli.StringSliceFlag{
			Name:  "log-module",
			Usage: "log level for a single module, e.g. renderer=debug",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "view",
			Usage: "open an interactive view of a scene",
			Description: `
Open a window that progressively renders the scene. Scenes (.gltf, .glb) and
HDR environments (.hdr) can be dropped on the window; http(s) URLs are
downloaded first.

Keys: Home/F fit camera, Space pick, R reset, Tab stats, A axis,
1/2 renderer, H any-hit, D debug mode, S sun & sky, +/- descaling, Esc quit.`,
			ArgsUsage: "[scene.gltf]",
			Flags:     cmd.RendererFlags(),
			Action:    cmd.View,
		},
		{
			Name:        "render",
			Usage:       "render a still image",
			Description: `Accumulate frames without opening a window and write the result as PNG.`,
			ArgsUsage:   "scene.gltf",
			Flags: append(cmd.RendererFlags(),
				cli.IntFlag{
					Name:  "frames",
					Value: 64,
					Usage: "number of frames to accumulate",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			),
			Action: cmd.RenderFrame,
		},
		{
			Name:      "info",
			Usage:     "print device and asset information",
			ArgsUsage: "[scene.gltf ...] [env.hdr ...]",
			Action:    cmd.Info,
		},
	}

	os.Exit(cmd.ExitCode(app.Run(os.Args)))
}
