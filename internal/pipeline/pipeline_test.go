package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/vespai/vespai-go/internal/alert"
	"github.com/vespai/vespai-go/internal/exchange"
	"github.com/vespai/vespai-go/internal/metrics"
	"github.com/vespai/vespai-go/internal/stats"
	"github.com/vespai/vespai-go/pkg/types"
)

// scriptCamera serves a fixed number of frames, then cancels the run
// context so the loop exits like a shutdown would.
type scriptCamera struct {
	served int
	max    int
	cancel context.CancelFunc
}

func (c *scriptCamera) ReadFrame(ctx context.Context) (*image.RGBA, error) {
	if c.served >= c.max {
		c.cancel()
		return nil, ctx.Err()
	}
	c.served++
	return image.NewRGBA(image.Rect(0, 0, 32, 32)), nil
}

type scriptDetector struct {
	calls   int
	objects [][]types.Object // per-call results, empty past the end
	err     error
}

func (d *scriptDetector) Classify(_ context.Context, _ *image.RGBA) ([]types.Object, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if d.calls-1 < len(d.objects) {
		return d.objects[d.calls-1], nil
	}
	return nil, nil
}

type staticGate struct{ motion bool }

func (g staticGate) HasMotion(_ *image.RGBA) bool { return g.motion }

type recordingAlerter struct {
	events  []types.DetectionEvent
	ids     []string
	outcome alert.Outcome
	cost    float64
}

func (a *recordingAlerter) Notify(_ context.Context, ev types.DetectionEvent, snapshotID string) (alert.Outcome, float64) {
	a.events = append(a.events, ev)
	a.ids = append(a.ids, snapshotID)
	return a.outcome, a.cost
}

// harness wires an orchestrator whose run context is cancelled by the
// camera once its frames are exhausted.
type harness struct {
	ctx  context.Context
	exch *exchange.FrameExchange
	agg  *stats.Aggregator
	m    *metrics.Metrics
	orch *Orchestrator
}

func newHarness(t *testing.T, cam *scriptCamera, det Detector, opts Options) *harness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	cam.cancel = cancel

	exch := exchange.New()
	agg := stats.New()
	m := metrics.New()

	opts.Pace = time.Millisecond
	opts.ReadBackoff = time.Millisecond

	o, err := New(cam, det, exch, agg, m, opts)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return &harness{ctx: ctx, exch: exch, agg: agg, m: m, orch: o}
}

func (h *harness) run() { h.orch.Run(h.ctx) }

func TestNewRequiresCollaborators(t *testing.T) {
	exch := exchange.New()
	agg := stats.New()
	m := metrics.New()

	if _, err := New(nil, &scriptDetector{}, exch, agg, m, Options{}); err == nil {
		t.Fatal("expected error without camera")
	}
	if _, err := New(&scriptCamera{}, nil, exch, agg, m, Options{}); err == nil {
		t.Fatal("expected error without detector")
	}
}

func TestPipelineRecordsDetections(t *testing.T) {
	cam := &scriptCamera{max: 3}
	det := &scriptDetector{objects: [][]types.Object{
		nil,
		{
			{Category: types.CategoryVelutina, Confidence: 0.92, Box: image.Rect(4, 4, 12, 12)},
			{Category: types.CategoryCrabro, Confidence: 0.85, Box: image.Rect(16, 16, 24, 24)},
		},
	}}
	alerter := &recordingAlerter{outcome: alert.Sent, cost: 0.075}

	h := newHarness(t, cam, det, Options{})
	h.orch.SetAlerter(alerter)
	h.run()

	view := h.agg.Snapshot()
	if view.TotalVelutina != 1 || view.TotalCrabro != 1 || view.TotalDetections != 2 {
		t.Fatalf("totals velutina=%d crabro=%d total=%d, want 1/1/2",
			view.TotalVelutina, view.TotalCrabro, view.TotalDetections)
	}
	if h.m.FramesRead.Load() != 3 {
		t.Fatalf("frames read = %d, want 3", h.m.FramesRead.Load())
	}
	if h.m.DetectionsVelutina.Load() != 1 || h.m.DetectionsCrabro.Load() != 1 {
		t.Fatalf("detection counters = %d/%d, want 1/1",
			h.m.DetectionsVelutina.Load(), h.m.DetectionsCrabro.Load())
	}

	if len(alerter.events) != 1 {
		t.Fatalf("alerter called %d times, want 1", len(alerter.events))
	}
	if alerter.events[0].Velutina != 1 {
		t.Fatalf("alert event velutina = %d, want 1", alerter.events[0].Velutina)
	}
	if alerter.ids[0] == "" {
		t.Fatal("alert should carry a snapshot id")
	}
	if h.m.SMSSent.Load() != 1 {
		t.Fatalf("sms sent metric = %d, want 1", h.m.SMSSent.Load())
	}
	if h.m.SMSCostMilli.Load() != 75 {
		t.Fatalf("sms cost metric = %d milli, want 75", h.m.SMSCostMilli.Load())
	}

	if _, ok := h.exch.Latest(); !ok {
		t.Fatal("loop should have published frames")
	}
	if _, ok := h.agg.SnapshotImage(alerter.ids[0]); !ok {
		t.Fatal("annotated snapshot should be cached under the alert id")
	}
}

func TestClassifierErrorDegrades(t *testing.T) {
	cam := &scriptCamera{max: 3}
	det := &scriptDetector{err: errors.New("daemon down")}

	h := newHarness(t, cam, det, Options{})
	h.run()

	if h.m.DetectErrors.Load() != 3 {
		t.Fatalf("detect errors = %d, want 3", h.m.DetectErrors.Load())
	}
	if h.agg.Snapshot().TotalDetections != 0 {
		t.Fatal("classifier errors must not record detections")
	}
	if _, ok := h.exch.Latest(); !ok {
		t.Fatal("raw frames are still published while the classifier is down")
	}
}

func TestMotionGateSkipsClassification(t *testing.T) {
	cam := &scriptCamera{max: 3}
	det := &scriptDetector{}

	h := newHarness(t, cam, det, Options{})
	h.orch.SetMotionGate(staticGate{motion: false})
	h.run()

	if det.calls != 0 {
		t.Fatalf("detector called %d times on a static scene, want 0", det.calls)
	}
	if h.m.FramesSkipped.Load() != 3 {
		t.Fatalf("frames skipped = %d, want 3", h.m.FramesSkipped.Load())
	}
	if _, ok := h.exch.Latest(); !ok {
		t.Fatal("skipped frames still refresh the live view")
	}
}

func TestCrabroOnlyEventAlertsOnlyWhenEnabled(t *testing.T) {
	crabro := [][]types.Object{
		{{Category: types.CategoryCrabro, Confidence: 0.9, Box: image.Rect(0, 0, 8, 8)}},
	}

	alerter := &recordingAlerter{outcome: alert.Sent}
	h := newHarness(t, &scriptCamera{max: 2}, &scriptDetector{objects: crabro}, Options{})
	h.orch.SetAlerter(alerter)
	h.run()

	if len(alerter.events) != 0 {
		t.Fatalf("crabro-only event alerted %d times with AlertOnCrabro off", len(alerter.events))
	}

	alerter = &recordingAlerter{outcome: alert.Sent}
	h = newHarness(t, &scriptCamera{max: 2}, &scriptDetector{objects: crabro}, Options{AlertOnCrabro: true})
	h.orch.SetAlerter(alerter)
	h.run()

	if len(alerter.events) != 1 {
		t.Fatalf("crabro-only event alerted %d times with AlertOnCrabro on, want 1", len(alerter.events))
	}
}

func TestGatedAlertCountsMetric(t *testing.T) {
	cam := &scriptCamera{max: 1}
	det := &scriptDetector{objects: [][]types.Object{
		{{Category: types.CategoryVelutina, Confidence: 0.9, Box: image.Rect(0, 0, 8, 8)}},
	}}
	alerter := &recordingAlerter{outcome: alert.Gated}

	h := newHarness(t, cam, det, Options{})
	h.orch.SetAlerter(alerter)
	h.run()

	if h.m.AlertsGated.Load() != 1 {
		t.Fatalf("alerts gated metric = %d, want 1", h.m.AlertsGated.Load())
	}
	if h.m.SMSSent.Load() != 0 {
		t.Fatal("gated alert must not count as sent")
	}
	if h.m.SMSCostMilli.Load() != 0 {
		t.Fatal("gated alert must not accumulate cost")
	}
}
