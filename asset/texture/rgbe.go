package texture

import (
	"errors"
	"image"
	"io"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

var errNotHDR = errors.New("decoded image carries no high dynamic range data")

// Decode a radiance image into a float RGBA texture.
func decodeRGBE(r io.Reader) (*Texture, error) {
	img, err := rgbe.Decode(r)
	if err != nil {
		return nil, err
	}

	hdrImg, ok := img.(hdr.Image)
	if !ok {
		return nil, errNotHDR
	}

	bounds := hdrImg.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	tex := &Texture{
		Format: Rgba32F,
		Width:  uint32(width),
		Height: uint32(height),
		Data:   make([]float32, width*height*4),
	}

	for y := 0; y < height; y++ {
		row := tex.Data[y*width*4 : (y+1)*width*4]
		for x := 0; x < width; x++ {
			r, g, b, _ := hdrImg.HDRAt(bounds.Min.X+x, bounds.Min.Y+y).HDRRGBA()
			row[x*4], row[x*4+1], row[x*4+2] = float32(r), float32(g), float32(b)
			row[x*4+3] = 1.0
		}
	}

	return tex, nil
}

// Encode a texture as a radiance image.
func Encode(w io.Writer, tex *Texture) error {
	img := hdr.NewRGB(image.Rect(0, 0, int(tex.Width), int(tex.Height)))
	for y := uint32(0); y < tex.Height; y++ {
		for x := uint32(0); x < tex.Width; x++ {
			r, g, b := tex.Texel(x, y)
			img.SetRGB(int(x), int(y), hdrcolor.RGB{R: float64(r), G: float64(g), B: float64(b)})
		}
	}
	return rgbe.Encode(w, img)
}
