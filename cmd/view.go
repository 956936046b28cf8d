package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/soerenfi/raytracing/renderer/opengl"
	"github.com/urfave/cli"
)

// Open an interactive view of a scene.
func View(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	r, err := setupRenderer(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = loadAssets(ctx, r); err != nil {
		logger.Errorf("could not load assets: %s", err.Error())
	}

	window, err := opengl.NewWindow(r, ctx.Int("width"), ctx.Int("height"))
	if err != nil {
		return err
	}
	defer window.Close()

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Notice("drop .gltf/.glb scenes or .hdr environments on the window to load them")
	return window.Run(runCtx)
}
