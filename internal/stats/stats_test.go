package stats

import (
	"fmt"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespai/vespai-go/pkg/types"
)

func testFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

// fixedClock returns a clock that ticks one second per call, so
// consecutive detections never collide on the same snapshot id.
func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestRecordDetectionTotals(t *testing.T) {
	a := newWithClock(fixedClock(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)))

	for i := 0; i < 100; i++ {
		cat := types.CategoryVelutina
		if i%2 == 1 {
			cat = types.CategoryCrabro
		}
		a.RecordDetection(cat, 0.9, uint64(i), testFrame())
	}

	view := a.Snapshot()
	assert.Equal(t, 50, view.TotalVelutina)
	assert.Equal(t, 50, view.TotalCrabro)
	assert.Equal(t, 100, view.TotalDetections)
	assert.Equal(t, view.TotalVelutina+view.TotalCrabro, view.TotalDetections)
}

func TestRecordDetectionUnknownCategoryDropped(t *testing.T) {
	a := newWithClock(fixedClock(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)))

	a.RecordDetection(types.CategoryVelutina, 0.9, 1, testFrame())
	id := a.RecordDetection(types.Category("wasp"), 0.9, 2, testFrame())

	assert.Equal(t, "", id)
	view := a.Snapshot()
	assert.Equal(t, 1, view.TotalDetections)
	assert.Equal(t, view.TotalVelutina+view.TotalCrabro, view.TotalDetections,
		"an unknown category must not break the totals invariant")
	assert.Len(t, view.Log, 1, "dropped detections are not logged")
	assert.Len(t, a.SnapshotIDs(), 1, "dropped detections are not cached")
}

func TestRecordDetectionHourlyBucket(t *testing.T) {
	a := newWithClock(fixedClock(time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)))

	a.RecordDetection(types.CategoryVelutina, 0.9, 1, testFrame())
	a.RecordDetection(types.CategoryCrabro, 0.9, 2, testFrame())

	view := a.Snapshot()
	require.Equal(t, 14, view.CurrentHour)
	assert.Equal(t, 1, view.Hourly[14].Velutina)
	assert.Equal(t, 1, view.Hourly[14].Crabro)
}

func TestSnapshotIDFormat(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 8, 24, 9, 30, 45, 0, time.UTC) }
	a := newWithClock(clock)

	id := a.RecordDetection(types.CategoryVelutina, 0.9, 42, testFrame())
	assert.Equal(t, "42_093045", id)
}

func TestSnapshotCacheEviction(t *testing.T) {
	a := newWithClock(fixedClock(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)))

	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, a.RecordDetection(types.CategoryVelutina, 0.9, uint64(i), testFrame()))
	}

	kept := a.SnapshotIDs()
	require.Len(t, kept, SnapshotCacheCap)
	// Oldest inserted is evicted first: the survivors are the last 20
	// in insertion order.
	assert.Equal(t, ids[len(ids)-SnapshotCacheCap:], kept)

	_, ok := a.SnapshotImage(ids[0])
	assert.False(t, ok, "evicted snapshot should be gone")
	_, ok = a.SnapshotImage(ids[len(ids)-1])
	assert.True(t, ok, "newest snapshot should be cached")
}

func TestSnapshotSameIDReplacedNotDuplicated(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) }
	a := newWithClock(clock)

	// Same frame, same second: two objects share one snapshot id.
	id1 := a.RecordDetection(types.CategoryVelutina, 0.9, 7, testFrame())
	id2 := a.RecordDetection(types.CategoryCrabro, 0.8, 7, testFrame())

	require.Equal(t, id1, id2)
	assert.Len(t, a.SnapshotIDs(), 1)
}

func TestSnapshotImageReturnsCopy(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) }
	a := newWithClock(clock)

	frame := testFrame()
	frame.Pix[0] = 200
	id := a.RecordDetection(types.CategoryVelutina, 0.9, 1, frame)

	img, ok := a.SnapshotImage(id)
	require.True(t, ok)
	img.Pix[0] = 0

	again, ok := a.SnapshotImage(id)
	require.True(t, ok)
	assert.Equal(t, uint8(200), again.Pix[0], "mutating a returned snapshot must not affect the cache")
}

func TestHourRollover(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 59, 0, 0, time.UTC)
	a := newWithClock(func() time.Time { return now })

	a.RecordDetection(types.CategoryVelutina, 0.9, 1, testFrame())
	require.Equal(t, 1, a.Snapshot().Hourly[10].Velutina)

	// Stale count from the same hour-slot a day ago.
	a.mu.Lock()
	a.hourly[11] = HourBucket{Velutina: 9, Crabro: 3}
	a.mu.Unlock()

	rolled := a.CheckHourRollover(time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC))
	assert.True(t, rolled)

	view := a.Snapshot()
	assert.Equal(t, 11, view.CurrentHour)
	assert.Equal(t, HourBucket{}, view.Hourly[11], "new bucket must start empty")
	assert.Equal(t, 1, view.Hourly[10].Velutina, "previous bucket keeps its counts")

	// Idempotent within the hour.
	assert.False(t, a.CheckHourRollover(time.Date(2026, 8, 24, 11, 30, 0, 0, time.UTC)))
}

func TestUpdateConfidenceClamp(t *testing.T) {
	a := New()

	a.UpdateConfidence(-5)
	assert.Equal(t, 0.0, a.Snapshot().ConfidencePct)

	a.UpdateConfidence(150)
	assert.Equal(t, 100.0, a.Snapshot().ConfidencePct)

	a.UpdateConfidence(math.NaN())
	assert.Equal(t, 0.0, a.Snapshot().ConfidencePct)

	// Last value wins, not an average.
	a.UpdateConfidence(80)
	a.UpdateConfidence(60)
	assert.Equal(t, 60.0, a.Snapshot().ConfidencePct)
}

func TestLogRingBounded(t *testing.T) {
	a := newWithClock(fixedClock(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)))

	for i := 0; i < LogCap+15; i++ {
		a.AddLogEntry(LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	view := a.Snapshot()
	require.Len(t, view.Log, LogCap)
	assert.Equal(t, "entry 15", view.Log[0].Message, "oldest entries are dropped")
	assert.Equal(t, fmt.Sprintf("entry %d", LogCap+14), view.Log[len(view.Log)-1].Message)
}

func TestIncrementSMSSent(t *testing.T) {
	a := New()
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	a.IncrementSMSSent(0.075, at)
	a.IncrementSMSSent(0.075, at.Add(time.Hour))

	view := a.Snapshot()
	assert.Equal(t, 2, view.SMSSent)
	assert.InDelta(t, 0.15, view.SMSCost, 1e-9)
	assert.Equal(t, at.Add(time.Hour), view.LastSMSAt)
}

// The detection totals must never be observed torn: every snapshot sees
// totalDetections equal to the sum of the species counters.
func TestSnapshotConsistencyUnderLoad(t *testing.T) {
	a := New()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			cat := types.CategoryVelutina
			if i%2 == 1 {
				cat = types.CategoryCrabro
			}
			a.RecordDetection(cat, 0.9, uint64(i), testFrame())
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				view := a.Snapshot()
				if view.TotalDetections != view.TotalVelutina+view.TotalCrabro {
					t.Errorf("torn snapshot: total=%d velutina=%d crabro=%d",
						view.TotalDetections, view.TotalVelutina, view.TotalCrabro)
					return
				}
			}
		}()
	}
	wg.Wait()

	view := a.Snapshot()
	assert.Equal(t, 2000, view.TotalDetections)
}
