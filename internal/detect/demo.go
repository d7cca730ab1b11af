package detect

import (
	"context"
	"image"
	"math/rand"

	"github.com/vespai/vespai-go/pkg/types"
)

// Demo emits occasional fake detections so the dashboard and alert path
// can be exercised without a classifier daemon.
type Demo struct {
	every  int // emit a detection every N frames
	frames int
	rng    *rand.Rand
}

// NewDemo returns a demo classifier emitting one detection every
// `every` frames, alternating species.
func NewDemo(every int) *Demo {
	if every <= 0 {
		every = 90
	}
	return &Demo{every: every, rng: rand.New(rand.NewSource(1))}
}

// Ping always succeeds; the demo classifier is in-process.
func (d *Demo) Ping(ctx context.Context) error { return nil }

// Classify returns a fake detection on the configured cadence.
func (d *Demo) Classify(ctx context.Context, frame *image.RGBA) ([]types.Object, error) {
	d.frames++
	if d.frames%d.every != 0 {
		return nil, nil
	}

	cat := types.CategoryCrabro
	if (d.frames/d.every)%2 == 0 {
		cat = types.CategoryVelutina
	}

	b := frame.Bounds()
	w, h := b.Dx()/6, b.Dy()/6
	x := b.Min.X + d.rng.Intn(maxInt(1, b.Dx()-w))
	y := b.Min.Y + d.rng.Intn(maxInt(1, b.Dy()-h))

	return []types.Object{{
		Category:   cat,
		Confidence: 0.80 + d.rng.Float64()*0.19,
		Box:        image.Rect(x, y, x+w, y+h),
	}}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
