// Package camera provides frame sources for the detection loop.
package camera

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"
)

// Synthetic generates animated frames so the server can run without a
// capture device. Used by demo mode and by tests.
type Synthetic struct {
	width  int
	height int
	start  time.Time
	frames uint64
}

// NewSynthetic returns a synthetic source producing width x height frames.
func NewSynthetic(width, height int) *Synthetic {
	if width <= 0 || height <= 0 {
		width, height = 960, 540
	}
	return &Synthetic{width: width, height: height, start: time.Now()}
}

// ReadFrame produces the next synthetic frame. It never fails but
// honors context cancellation like a real capture read would.
func (s *Synthetic) ReadFrame(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.frames++
	t := time.Since(s.start).Seconds()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	base := uint8(24 + 16*math.Sin(t/4))
	for y := 0; y < s.height; y++ {
		shade := base + uint8(y*40/s.height)
		for x := 0; x < s.width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = shade / 2
			img.Pix[i+1] = shade
			img.Pix[i+2] = shade / 3
			img.Pix[i+3] = 255
		}
	}

	// Moving dot so consecutive frames always differ.
	cx := s.width/2 + int(float64(s.width)/3*math.Sin(t*2))
	cy := s.height/2 + int(float64(s.height)/4*math.Cos(t*1.5))
	drawDot(img, cx, cy, 8, color.RGBA{R: 255, G: 160, B: 0, A: 255})

	return img, nil
}

func drawDot(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
