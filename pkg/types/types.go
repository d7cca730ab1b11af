package types

import (
	"image"
	"time"
)

// Category identifies a recognized hornet species.
type Category string

const (
	// CategoryVelutina is the Asian hornet (Vespa velutina), the
	// high-priority species that triggers SMS alerts.
	CategoryVelutina Category = "velutina"
	// CategoryCrabro is the European hornet (Vespa crabro).
	CategoryCrabro Category = "crabro"
)

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	return c == CategoryVelutina || c == CategoryCrabro
}

// DisplayName returns the human-readable species name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryVelutina:
		return "Vespa velutina"
	case CategoryCrabro:
		return "Vespa crabro"
	default:
		return string(c)
	}
}

// Object is one classified object within a frame.
type Object struct {
	Category   Category
	Confidence float64 // [0, 1]
	Box        image.Rectangle
}

// DetectionEvent is the merged result of classifying one frame.
// Immutable after creation.
type DetectionEvent struct {
	FrameID     uint64
	Time        time.Time
	Velutina    int
	Crabro      int
	Confidences []float64
}

// Total returns the number of detected objects in the event.
func (e DetectionEvent) Total() int {
	return e.Velutina + e.Crabro
}

// MeanConfidence returns the mean of the per-object confidences,
// or 0 when the event carries none.
func (e DetectionEvent) MeanConfidence() float64 {
	if len(e.Confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range e.Confidences {
		sum += c
	}
	return sum / float64(len(e.Confidences))
}
