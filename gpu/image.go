package gpu

import (
	"github.com/soerenfi/raytracing/types"
)

// A float RGBA image used as render target and accumulation buffer.
type Image struct {
	Width  int
	Height int
	Pix    []types.Vec4
}

func NewImage(width, height int) *Image {
	img := &Image{}
	img.Resize(width, height)
	return img
}

// Reallocate the image storage if the dimensions changed. Contents are
// cleared on reallocation.
func (img *Image) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if img.Width == width && img.Height == height && img.Pix != nil {
		return
	}
	img.Width, img.Height = width, height
	img.Pix = make([]types.Vec4, width*height)
}

func (img *Image) At(x, y int) types.Vec4 {
	return img.Pix[y*img.Width+x]
}

func (img *Image) Set(x, y int, v types.Vec4) {
	img.Pix[y*img.Width+x] = v
}

// Fill the image with a constant value.
func (img *Image) Clear(v types.Vec4) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}
