package env

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soerenfi/raytracing/asset/texture"
	"github.com/soerenfi/raytracing/types"
)

func constantTexture(w, h uint32, value float32) *texture.Texture {
	tex := &texture.Texture{Format: texture.Rgba32F, Width: w, Height: h, Data: make([]float32, w*h*4)}
	for i := uint32(0); i < w*h; i++ {
		tex.Data[i*4], tex.Data[i*4+1], tex.Data[i*4+2], tex.Data[i*4+3] = value, value, value, 1
	}
	return tex
}

func TestConstantEnvironmentIntegral(t *testing.T) {
	type spec struct {
		w, h  uint32
		value float32
	}
	specs := []spec{
		{1, 1, 1},
		{16, 8, 2},
		{64, 32, 0.5},
	}

	for index, s := range specs {
		h, err := NewHDRFromTexture("const", constantTexture(s.w, s.h, s.value))
		if err != nil {
			t.Fatal(err)
		}
		if diff := math.Abs(float64(h.Integral() - s.value)); diff > 1e-4 {
			t.Fatalf("[spec %d] expected integral %f; got %f", index, s.value, h.Integral())
		}
	}

	if NewHDR().Integral() < 0.9999 || NewHDR().Integral() > 1.0001 {
		t.Fatalf("expected default environment integral to be 1; got %f", NewHDR().Integral())
	}
}

func TestDirectionMapping(t *testing.T) {
	dirs := []types.Vec3{
		types.XYZ(0, 0, -1),
		types.XYZ(1, 0, 0),
		types.XYZ(0.3, 0.5, 0.8).Normalize(),
		types.XYZ(-0.6, -0.7, 0.2).Normalize(),
	}
	for index, dir := range dirs {
		u, v := dirToUV(dir)
		back := uvToDir(u, v)
		if back.Sub(dir).Len() > 1e-4 {
			t.Fatalf("[spec %d] expected %v to survive uv mapping; got %v", index, dir, back)
		}
	}
}

func TestImportanceSampling(t *testing.T) {
	tex := constantTexture(32, 16, 0)
	// A single bright texel near the horizon
	bx, by := uint32(20), uint32(8)
	offset := (by*tex.Width + bx) * 4
	tex.Data[offset], tex.Data[offset+1], tex.Data[offset+2] = 100, 100, 100

	h, err := NewHDRFromTexture("spot", tex)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		u1, u2 := float32(i)/20, float32(19-i)/20
		dir, pdf := h.Sample(u1, u2)
		if radiance := h.Lookup(dir); radiance[0] != 100 {
			t.Fatalf("[sample %d] expected sample to land on the bright texel; got radiance %v", i, radiance)
		}
		if pdf <= 1/(4*math.Pi) {
			t.Fatalf("[sample %d] expected pdf above the uniform pdf; got %f", i, pdf)
		}
	}

	if pdf := h.Pdf(types.XYZ(0, 1, 0)); pdf != 0 {
		t.Fatalf("expected zero pdf for a black direction; got %f", pdf)
	}
}

func TestLoadHDR(t *testing.T) {
	pathToHdr := filepath.Join(t.TempDir(), "studio.hdr")
	f, err := os.Create(pathToHdr)
	if err != nil {
		t.Fatal(err)
	}
	if err = texture.Encode(f, constantTexture(8, 4, 1)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	h, err := LoadHDR(pathToHdr)
	if err != nil {
		t.Fatal(err)
	}

	if w, hh := h.Size(); w != 8 || hh != 4 {
		t.Fatalf("expected 8x4 environment; got %dx%d", w, hh)
	}
	if math.Abs(float64(h.Integral()-1)) > 1e-3 {
		t.Fatalf("expected integral 1; got %f", h.Integral())
	}

	if _, err = LoadHDR(filepath.Join(t.TempDir(), "missing.hdr")); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}

func TestSunAndSky(t *testing.T) {
	ss := DefaultSunAndSky()
	if ss.InUse || !ss.YIsUp || ss.Multiplier != DefaultMultiplier {
		t.Fatalf("unexpected defaults: %+v", ss)
	}

	type spec struct {
		up     types.Vec3
		expYUp bool
	}
	specs := []spec{
		{types.XYZ(0, 1, 0), true},
		{types.XYZ(0, 0, 1), false},
		{types.XYZ(0, 0.999, 0.01), false},
	}
	for index, s := range specs {
		ss.SyncUp(s.up)
		if ss.YIsUp != s.expYUp {
			t.Fatalf("[spec %d] expected YIsUp = %t; got %t", index, s.expYUp, ss.YIsUp)
		}
	}

	ss = DefaultSunAndSky()
	zenith := ss.Eval(types.XYZ(0, 1, 0))
	if zenith[2] <= zenith[0] {
		t.Fatalf("expected a blue zenith; got %v", zenith)
	}
	ground := ss.Eval(types.XYZ(0.3, -1, 0))
	if math.Abs(float64(ground[0]-ground[2])) > 0.05 {
		t.Fatalf("expected a grey ground; got %v", ground)
	}
	sun := ss.Eval(ss.SunDirection)
	if sun.MaxComponent() <= zenith.MaxComponent() {
		t.Fatalf("expected the sun to be brighter than the sky; got sun %v, sky %v", sun, zenith)
	}
}
