package post

import (
	"image"
	"image/color"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const busyPadding = 8

// Get the loading message with one to three trailing dots depending on
// the elapsed time.
func BusyText(reason string, elapsed time.Duration) string {
	dots := int(elapsed/(250*time.Millisecond))%3 + 1
	return reason + strings.Repeat(".", dots)
}

// Draw a loading indicator centered over dst, leaving the rest of the last
// presented image untouched.
func DrawBusy(dst *image.RGBA, reason string, elapsed time.Duration) {
	face := basicfont.Face7x13
	text := BusyText(reason, elapsed)

	textW := font.MeasureString(face, text).Ceil()
	textH := face.Metrics().Height.Ceil()

	bounds := dst.Bounds()
	box := image.Rect(0, 0, textW+2*busyPadding, textH+2*busyPadding)
	box = box.Add(image.Pt(
		bounds.Min.X+(bounds.Dx()-box.Dx())/2,
		bounds.Min.Y+(bounds.Dy()-box.Dy())/2,
	))

	draw.Draw(dst, box, image.NewUniform(color.RGBA{A: 192}), image.Point{}, draw.Over)

	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(box.Min.X+busyPadding, box.Min.Y+busyPadding+face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)
}
