// Package motion implements an optional frame-difference gate that lets
// the detection loop skip classification on static scenes.
package motion

import (
	"image"
)

// Detector compares each frame against the previous one in grayscale
// and reports motion when enough pixels changed. It is used only from
// the detection loop and needs no locking.
type Detector struct {
	minArea   int   // changed-pixel count required to report motion
	threshold uint8 // per-pixel intensity delta considered a change
	prev      *image.Gray
}

// NewDetector returns a gate reporting motion when at least minArea
// pixels change by more than threshold between consecutive frames.
func NewDetector(minArea int, threshold uint8) *Detector {
	if minArea <= 0 {
		minArea = 100
	}
	if threshold == 0 {
		threshold = 25
	}
	return &Detector{minArea: minArea, threshold: threshold}
}

// HasMotion reports whether the frame differs enough from the previous
// one. The first frame always reports motion so detection runs before
// a background exists.
func (d *Detector) HasMotion(frame *image.RGBA) bool {
	gray := toGray(frame)

	if d.prev == nil || !d.prev.Bounds().Eq(gray.Bounds()) {
		d.prev = gray
		return true
	}

	changed := 0
	for i := range gray.Pix {
		delta := int(gray.Pix[i]) - int(d.prev.Pix[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > int(d.threshold) {
			changed++
			if changed >= d.minArea {
				d.prev = gray
				return true
			}
		}
	}

	d.prev = gray
	return false
}

// toGray converts using integer luma weights, close enough to BT.601
// for change detection.
func toGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := src.PixOffset(b.Min.X, y)
		di := dst.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			r := int(src.Pix[si])
			g := int(src.Pix[si+1])
			bl := int(src.Pix[si+2])
			dst.Pix[di] = uint8((299*r + 587*g + 114*bl) / 1000)
			si += 4
			di++
		}
	}
	return dst
}
