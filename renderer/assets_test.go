package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soerenfi/raytracing/asset/texture"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/tracer/software"
)

const quadSceneTemplate = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0, 1]}],
  "nodes": [
    {"name": "quad", "mesh": 0},
    {"name": "cam", "camera": 0, "translation": [0, 0, 10]}
  ],
  "cameras": [{"type": "perspective", "perspective": {"yfov": 0.5, "znear": 0.1, "aspectRatio": 1.0}}],
  "meshes": [{"name": "quad", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}],
  "materials": [{"name": "white", "pbrMetallicRoughness": {"baseColorFactor": [0.8, 0.8, 0.8, 1.0], "metallicFactor": 0.0}}],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3", "min": [-1, -1, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 6, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 48, "target": 34962},
    {"buffer": 0, "byteOffset": 48, "byteLength": 12, "target": 34963}
  ],
  "buffers": [{"byteLength": 60, "uri": "data:application/octet-stream;base64,%s"}]
}`

func writeQuadScene(t *testing.T, dir string) string {
	var buf bytes.Buffer
	positions := []float32{
		-1, -1, 0,
		1, -1, 0,
		1, 1, 0,
		-1, 1, 0,
	}
	indices := []uint16{0, 1, 2, 0, 2, 3}
	binary.Write(&buf, binary.LittleEndian, positions)
	binary.Write(&buf, binary.LittleEndian, indices)

	pathToScene := filepath.Join(dir, "quad.gltf")
	doc := fmt.Sprintf(quadSceneTemplate, base64.StdEncoding.EncodeToString(buf.Bytes()))
	if err := os.WriteFile(pathToScene, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return pathToScene
}

func writeConstantHDR(t *testing.T, dir string, value float32) string {
	tex := &texture.Texture{Format: texture.Rgba32F, Width: 16, Height: 8, Data: make([]float32, 16*8*4)}
	for i := 0; i < 16*8; i++ {
		tex.Data[i*4], tex.Data[i*4+1], tex.Data[i*4+2], tex.Data[i*4+3] = value, value, value, 1
	}

	pathToHdr := filepath.Join(dir, "studio.hdr")
	f, err := os.Create(pathToHdr)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err = texture.Encode(f, tex); err != nil {
		t.Fatal(err)
	}
	return pathToHdr
}

func loadAndWait(t *testing.T, r *Renderer, pathToAsset string) {
	if err := r.LoadAsset(pathToAsset); err != nil {
		t.Fatal(err)
	}
	out, ok := r.WaitLoads()
	if !ok || out.Status != OutcomeLoaded || out.Err != nil {
		t.Fatalf("expected %s to load; got %s", pathToAsset, out)
	}
}

func TestLoadAssetsIntoSoftwareRenderers(t *testing.T) {
	r, err := New(gpu.NewSoftwareDevice("test"), map[tracer.Kind]tracer.Renderer{
		tracer.Pipeline: software.NewPipeline(2),
		tracer.Query:    software.NewQuery(2),
	}, Options{FrameW: 32, FrameH: 24, MaxFrames: 100, NumBounces: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	step := func() FrameResult {
		res, err := r.Frame(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	for i := 0; i < 3; i++ {
		step()
	}

	dir := t.TempDir()

	// Scene load
	loadAndWait(t, r, writeQuadScene(t, dir))
	resets := r.FrameState().Resets
	res := step()
	if got := r.FrameState().Resets - resets; got != 1 {
		t.Fatalf("expected exactly one reset after the scene load; got %d", got)
	}
	if res.Frame != 0 {
		t.Fatalf("expected frame 0 to be rendered after the scene load; got %d", res.Frame)
	}
	if r.sc.Name() != "quad" {
		t.Fatalf("expected scene 'quad' to be active; got %q", r.sc.Name())
	}
	if !r.sets[tracer.SceneSet].Layout().Equal(r.sc.Layout()) {
		t.Fatalf("expected scene descriptor layout %s; got %s", r.sc.Layout(), r.sets[tracer.SceneSet].Layout())
	}
	step()
	if cur := r.FrameState().Current; cur != 0 {
		t.Fatalf("expected accumulation to continue after the load step; got frame %d", cur)
	}

	pick, err := r.Pick(16, 12)
	if err != nil {
		t.Fatal(err)
	}
	if !pick.Hit || pick.Instance != 0 {
		t.Fatalf("expected the picker to hit the loaded quad; got %s", pick)
	}

	// Environment load
	loadAndWait(t, r, writeConstantHDR(t, dir, 2))
	step()
	settings := r.Settings()
	if clamp := settings.State.FireflyClampThreshold; math.Abs(float64(clamp-8)) > 1e-2 {
		t.Fatalf("expected firefly clamp 4x the environment integral (8); got %f", clamp)
	}
	if settings.Sky.InUse {
		t.Fatal("expected the analytic sky to be disabled after an environment load")
	}

	for _, kind := range []tracer.Kind{tracer.Pipeline, tracer.Query} {
		if err = r.SwitchRenderer(kind); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 3; i++ {
			res := step()
			if res.Frame < 0 || res.Image == nil {
				t.Fatalf("[%s] expected frame %d to be rendered; got %+v", kind, i, res)
			}
		}
		if r.Stats().Renderer == "" {
			t.Fatalf("[%s] expected frame stats", kind)
		}
	}
}
