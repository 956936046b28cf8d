package cmd

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/soerenfi/raytracing/asset"
	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/telemetry"
	"github.com/urfave/cli"
)

// Print information about the render device and the supplied assets.
func Info(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	monitor := telemetry.NewRuntime()
	buf.WriteString(fmt.Sprintf("\nSoftware device: %s\n  Workers %d\n  Runtime %s\n", monitor.Name(), runtime.NumCPU(), monitor.Stats()))
	logger.Notice(buf.String())

	for idx := 0; idx < ctx.NArg(); idx++ {
		path := ctx.Args().Get(idx)
		switch asset.KindOf(path) {
		case asset.SceneAsset:
			sc, err := scene.Load(path)
			if err != nil {
				return err
			}
			logger.Noticef("scene %s:\n%s", sc.Name(), sc.Stats())
		case asset.EnvironmentAsset:
			hdr, err := env.LoadHDR(path)
			if err != nil {
				return err
			}
			logger.Noticef("environment %s:\n%s", hdr.Name(), hdrInfo(hdr))
		default:
			logger.Warningf("skipping unsupported file %s", path)
		}
	}
	return nil
}

func hdrInfo(hdr *env.HDR) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Property", "Value"})

	w, h := hdr.Size()
	table.Append([]string{"Size", fmt.Sprintf("%dx%d", w, h)})
	table.Append([]string{"Integral", fmt.Sprintf("%.4f", hdr.Integral())})
	table.Append([]string{"Firefly clamp", fmt.Sprintf("%.4f", hdr.Integral()*4)})

	table.Render()
	return buf.String()
}
