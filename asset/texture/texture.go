package texture

import (
	"bufio"
	"fmt"

	"github.com/soerenfi/raytracing/asset"
)

type Format uint32

const (
	Luminance32F Format = iota
	Rgba32F
)

// A texture image and its metadata. Texels are stored row-major starting
// at the top-left corner.
type Texture struct {
	Format Format

	Width  uint32
	Height uint32

	Data []float32
}

// Get the RGB value of texel (x, y).
func (t *Texture) Texel(x, y uint32) (r, g, b float32) {
	if t.Format == Luminance32F {
		l := t.Data[y*t.Width+x]
		return l, l, l
	}
	offset := (y*t.Width + x) * 4
	return t.Data[offset], t.Data[offset+1], t.Data[offset+2]
}

// Create a new HDR texture from a Resource. Only radiance (RGBE) images are
// supported; all data is expanded to float RGBA.
func New(res *asset.Resource) (*Texture, error) {
	if res.Kind() != asset.EnvironmentAsset {
		return nil, fmt.Errorf("texture: unsupported image format for %s", res.Path())
	}

	tex, err := decodeRGBE(bufio.NewReader(res))
	if err != nil {
		return nil, fmt.Errorf("texture: could not read data from %s: %s", res.Path(), err.Error())
	}

	return tex, nil
}
