// Package exchange provides the single-slot frame buffer shared between
// the detection loop and the HTTP live view.
package exchange

import (
	"image"
	"image/draw"
	"sync"
)

// FrameExchange holds the most recent annotated frame. Writes always win:
// an unconsumed frame is silently replaced, never queued. The detection
// loop must never stall on a slow HTTP client, and clients must always
// see the newest frame rather than a backlog.
type FrameExchange struct {
	mu    sync.Mutex
	frame *image.RGBA
}

// New returns an empty FrameExchange.
func New() *FrameExchange {
	return &FrameExchange{}
}

// Publish replaces the held frame. The exchange takes ownership of img;
// the caller must not mutate it afterwards. Never blocks on readers.
func (x *FrameExchange) Publish(img *image.RGBA) {
	if img == nil {
		return
	}
	x.mu.Lock()
	x.frame = img
	x.mu.Unlock()
}

// Latest returns a copy of the currently held frame. ok is false until
// the first Publish; callers render a placeholder in that case.
func (x *FrameExchange) Latest() (img *image.RGBA, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.frame == nil {
		return nil, false
	}
	return cloneRGBA(x.frame), true
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}
