// Package overlay renders detection annotations onto frames for the
// live view and the snapshot cache.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vespai/vespai-go/pkg/types"
)

var (
	velutinaColor = color.RGBA{R: 255, G: 80, B: 0, A: 255}  // orange-red, high priority
	crabroColor   = color.RGBA{R: 255, G: 200, B: 0, A: 255} // yellow
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	textBack      = color.RGBA{A: 200}
)

// Annotate returns a copy of src with bounding boxes and confidence
// labels drawn for each object. src is not modified.
func Annotate(src *image.RGBA, objects []types.Object) *image.RGBA {
	dst := Clone(src)
	for _, obj := range objects {
		c := crabroColor
		if obj.Category == types.CategoryVelutina {
			c = velutinaColor
		}
		drawRect(dst, obj.Box, c, 3)

		label := fmt.Sprintf("%s %.2f", obj.Category, obj.Confidence)
		labelY := obj.Box.Min.Y - 6
		if labelY < 12 {
			labelY = obj.Box.Max.Y + 14
		}
		drawLabel(dst, obj.Box.Min.X, labelY, label)
	}
	return dst
}

// Banner draws a status line with a dark background in the top-left
// corner, used for the frame id / fps / totals readout on the live view.
func Banner(img *image.RGBA, text string) {
	width := basicfont.Face7x13.Advance*len(text) + 8
	bg := image.Rect(4, 4, 4+width, 22)
	draw.Draw(img, bg.Intersect(img.Bounds()), image.NewUniform(textBack), image.Point{}, draw.Over)
	drawText(img, 8, 17, text)
}

// Downscale resizes src to the given width preserving aspect ratio.
// Used to keep the live view payload small regardless of the camera
// resolution.
func Downscale(src *image.RGBA, width int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() <= width || b.Dx() == 0 {
		return src
	}
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// Clone returns a deep copy of src.
func Clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(img, x, r.Min.Y+t, c)
			setPixel(img, x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(img, r.Min.X+t, y, c)
			setPixel(img, r.Max.X-1-t, y, c)
		}
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	width := basicfont.Face7x13.Advance * len(text)
	bg := image.Rect(x-2, y-11, x+width+2, y+3)
	draw.Draw(img, bg.Intersect(img.Bounds()), image.NewUniform(textBack), image.Point{}, draw.Over)
	drawText(img, x, y, text)
}

func drawText(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}
