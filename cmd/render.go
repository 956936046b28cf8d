package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/soerenfi/raytracing/renderer"
	"github.com/urfave/cli"
)

// Render a still image by accumulating frames without a window.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	r, err := setupRenderer(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = loadAssets(ctx, r); err != nil {
		return err
	}

	frames := ctx.Int("frames")
	if frames < 1 {
		frames = 1
	}

	logger.Noticef("rendering %d frames", frames)
	start := time.Now()
	var (
		res   renderer.FrameResult
		stats []renderer.FrameStats
	)
	for i := 0; i < frames; i++ {
		if res, err = r.Frame(context.Background()); err != nil {
			return err
		}
		stats = append(stats, r.Stats())
		if state := r.FrameState(); state.Done() {
			break
		}
	}
	logger.Noticef("rendered %d frames in %d ms", len(stats), time.Since(start).Nanoseconds()/1000000)

	imgFile := ctx.String("out")
	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, res.Image); err != nil {
		return fmt.Errorf("error encoding png file: %s", err.Error())
	}
	logger.Noticef("wrote frame to %s", imgFile)

	displayFrameStats(stats)
	return nil
}

func displayFrameStats(stats []renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Frame", "Renderer", "Size", "Render time", "Tonemap time"})

	var total time.Duration
	for _, stat := range stats {
		table.Append([]string{
			fmt.Sprintf("%d", stat.Frame),
			stat.Renderer,
			fmt.Sprintf("%dx%d", stat.Size.W, stat.Size.H),
			stat.RenderTime.String(),
			stat.TonemapTime.String(),
		})
		total += stat.FrameTime
	}
	table.SetFooter([]string{"", "", "", "TOTAL", total.String()})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
