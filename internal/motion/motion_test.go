package motion

import (
	"image"
	"testing"
)

func frameWithBlock(w, h int, block image.Rectangle, value uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			v := uint8(20)
			if image.Pt(x, y).In(block) {
				v = value
			}
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 255
		}
	}
	return img
}

func TestFirstFrameAlwaysMotion(t *testing.T) {
	d := NewDetector(100, 25)
	if !d.HasMotion(frameWithBlock(64, 64, image.Rectangle{}, 0)) {
		t.Fatal("first frame must report motion")
	}
}

func TestStaticSceneNoMotion(t *testing.T) {
	d := NewDetector(100, 25)
	frame := frameWithBlock(64, 64, image.Rectangle{}, 0)

	d.HasMotion(frame)
	if d.HasMotion(frameWithBlock(64, 64, image.Rectangle{}, 0)) {
		t.Fatal("identical frames must not report motion")
	}
}

func TestLargeChangeReportsMotion(t *testing.T) {
	d := NewDetector(100, 25)

	d.HasMotion(frameWithBlock(64, 64, image.Rectangle{}, 0))
	// A 16x16 bright block changes 256 pixels, past the 100 minimum.
	if !d.HasMotion(frameWithBlock(64, 64, image.Rect(10, 10, 26, 26), 250)) {
		t.Fatal("large change must report motion")
	}
}

func TestSmallChangeBelowMinArea(t *testing.T) {
	d := NewDetector(100, 25)

	d.HasMotion(frameWithBlock(64, 64, image.Rectangle{}, 0))
	// A 5x5 block changes only 25 pixels.
	if d.HasMotion(frameWithBlock(64, 64, image.Rect(10, 10, 15, 15), 250)) {
		t.Fatal("change below min area must not report motion")
	}
}

func TestResolutionChangeResets(t *testing.T) {
	d := NewDetector(100, 25)

	d.HasMotion(frameWithBlock(64, 64, image.Rectangle{}, 0))
	if !d.HasMotion(frameWithBlock(32, 32, image.Rectangle{}, 0)) {
		t.Fatal("a resolution change must report motion and rebase")
	}
}
