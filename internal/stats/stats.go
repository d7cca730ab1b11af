// Package stats aggregates detection statistics for the dashboard and
// the SMS alert log. One Aggregator instance is shared between the
// detection loop (sole writer) and HTTP readers.
package stats

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/vespai/vespai-go/internal/logger"
	"github.com/vespai/vespai-go/pkg/types"
)

const (
	// SnapshotCacheCap bounds the number of annotated frames kept for
	// the /frame/{id} accessor. Oldest-inserted entry is evicted first.
	SnapshotCacheCap = 20
	// LogCap bounds the detection log ring. Oldest entries are
	// silently dropped.
	LogCap = 20
)

// LogEntry is one line of the dashboard detection log. The JSON keys
// match the dashboard API.
type LogEntry struct {
	Time       string `json:"time"`
	Message    string `json:"message"`
	Category   string `json:"type"`
	SnapshotID string `json:"frame_id"`
}

// HourBucket accumulates per-species counts for one hour-of-day slot.
type HourBucket struct {
	Velutina int `json:"velutina"`
	Crabro   int `json:"crabro"`
}

// StatsView is a consistent copy of all aggregator state, taken under a
// single lock acquisition so readers never observe a torn update.
//
// The hourly buckets are overwritten as the day wraps, so the sum over
// all 24 buckets equals the running totals only within one day-cycle.
// They back a display chart, not an audit log.
type StatsView struct {
	StartTime       time.Time
	FrameID         uint64
	FPS             float64
	TotalVelutina   int
	TotalCrabro     int
	TotalDetections int
	SavedImages     int
	SMSSent         int
	SMSCost         float64
	LastSMSAt       time.Time
	LastDetectionAt time.Time
	// ConfidencePct holds the most recent per-event mean confidence,
	// not a running average. It is replaced on every update.
	ConfidencePct float64
	CurrentHour   int
	Hourly        [24]HourBucket
	Log           []LogEntry // oldest first
}

// Aggregator owns all detection statistics: running counters, the
// hourly buckets, the detection log ring, and the snapshot cache. All
// operations are O(1) or O(frame copy) and serialize on one mutex.
type Aggregator struct {
	mu sync.Mutex

	start           time.Time
	frameID         uint64
	fps             float64
	totalVelutina   int
	totalCrabro     int
	totalDetections int
	savedImages     int
	smsSent         int
	smsCost         float64
	lastSMSAt       time.Time
	lastDetectionAt time.Time
	confidencePct   float64

	currentHour int
	hourly      [24]HourBucket

	log []LogEntry

	snapshots map[string]*image.RGBA
	snapOrder []string // insertion order, oldest first

	now func() time.Time
}

// New creates an Aggregator with the current hour as the active bucket.
func New() *Aggregator {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{
		start:       now(),
		currentHour: now().Hour(),
		snapshots:   make(map[string]*image.RGBA),
		now:         now,
	}
}

// RecordFrame updates the frame counter and the current fps gauge.
func (a *Aggregator) RecordFrame(frameID uint64, fps float64) {
	a.mu.Lock()
	a.frameID = frameID
	a.fps = fps
	a.mu.Unlock()
}

// RecordDetection merges one classified object into the statistics:
// totals, the current hourly bucket, the snapshot cache, and the log
// ring. The annotated frame is copied on insertion so the caller's
// buffer can be reused. Returns the snapshot id for alert correlation.
//
// Unrecognized categories are a programmer error at the classifier
// boundary; they are dropped with a warning and an empty id. Counting
// them would break totalDetections == totalVelutina + totalCrabro.
func (a *Aggregator) RecordDetection(cat types.Category, confidence float64, frameID uint64, annotated *image.RGBA) string {
	confidence = clamp(confidence, 0, 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	switch cat {
	case types.CategoryVelutina:
		a.totalVelutina++
		a.hourly[a.currentHour].Velutina++
	case types.CategoryCrabro:
		a.totalCrabro++
		a.hourly[a.currentHour].Crabro++
	default:
		logger.Warn("Stats", "Dropping detection with unknown category %q", cat)
		return ""
	}
	a.totalDetections++
	a.lastDetectionAt = now

	snapshotID := fmt.Sprintf("%d_%s", frameID, now.Format("150405"))
	a.insertSnapshotLocked(snapshotID, annotated)

	a.appendLogLocked(LogEntry{
		Time:       now.Format("15:04:05"),
		Message:    fmt.Sprintf("%s detected (%.0f%%)", cat.DisplayName(), confidence*100),
		Category:   string(cat),
		SnapshotID: snapshotID,
	})

	return snapshotID
}

// AddLogEntry appends an entry to the detection log ring. Used by the
// alert service to record sent SMS messages.
func (a *Aggregator) AddLogEntry(e LogEntry) {
	a.mu.Lock()
	a.appendLogLocked(e)
	a.mu.Unlock()
}

// CheckHourRollover compares now's hour against the active bucket. On a
// change it zeroes the bucket for the new hour before making it
// current, so stale same-hour-yesterday counts never leak into today's
// display. Idempotent within the same hour.
func (a *Aggregator) CheckHourRollover(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	hour := now.Hour()
	if hour == a.currentHour {
		return false
	}
	a.hourly[hour] = HourBucket{}
	a.currentHour = hour
	return true
}

// UpdateConfidence stores the latest per-event mean confidence in
// percent. This is telemetry: out-of-range values are clamped, NaN
// becomes 0.
func (a *Aggregator) UpdateConfidence(pct float64) {
	pct = clamp(pct, 0, 100)
	a.mu.Lock()
	a.confidencePct = pct
	a.mu.Unlock()
}

// IncrementSMSSent records one successfully dispatched alert.
func (a *Aggregator) IncrementSMSSent(cost float64, at time.Time) {
	a.mu.Lock()
	a.smsSent++
	a.smsCost += cost
	a.lastSMSAt = at
	a.mu.Unlock()
}

// IncrementSavedImages records one detection image written to disk.
func (a *Aggregator) IncrementSavedImages() {
	a.mu.Lock()
	a.savedImages++
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters, the hourly
// buckets, and the log ring.
func (a *Aggregator) Snapshot() StatsView {
	a.mu.Lock()
	defer a.mu.Unlock()

	logCopy := make([]LogEntry, len(a.log))
	copy(logCopy, a.log)

	return StatsView{
		StartTime:       a.start,
		FrameID:         a.frameID,
		FPS:             a.fps,
		TotalVelutina:   a.totalVelutina,
		TotalCrabro:     a.totalCrabro,
		TotalDetections: a.totalDetections,
		SavedImages:     a.savedImages,
		SMSSent:         a.smsSent,
		SMSCost:         a.smsCost,
		LastSMSAt:       a.lastSMSAt,
		LastDetectionAt: a.lastDetectionAt,
		ConfidencePct:   a.confidencePct,
		CurrentHour:     a.currentHour,
		Hourly:          a.hourly,
		Log:             logCopy,
	}
}

// SnapshotImage returns a copy of the cached annotated frame for id, or
// ok=false if it was never recorded or has been evicted.
func (a *Aggregator) SnapshotImage(id string) (*image.RGBA, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	img, ok := a.snapshots[id]
	if !ok {
		return nil, false
	}
	return cloneRGBA(img), true
}

// SnapshotIDs returns the cached snapshot ids in insertion order,
// oldest first.
func (a *Aggregator) SnapshotIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, len(a.snapOrder))
	copy(ids, a.snapOrder)
	return ids
}

func (a *Aggregator) insertSnapshotLocked(id string, annotated *image.RGBA) {
	if annotated == nil {
		return
	}

	// Same frame classified more than once within a second reuses the
	// id; replace the image without disturbing insertion order.
	if _, exists := a.snapshots[id]; !exists {
		a.snapOrder = append(a.snapOrder, id)
	}
	a.snapshots[id] = cloneRGBA(annotated)

	for len(a.snapOrder) > SnapshotCacheCap {
		oldest := a.snapOrder[0]
		a.snapOrder = a.snapOrder[1:]
		delete(a.snapshots, oldest)
	}
}

func (a *Aggregator) appendLogLocked(e LogEntry) {
	a.log = append(a.log, e)
	if len(a.log) > LogCap {
		a.log = a.log[len(a.log)-LogCap:]
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}
