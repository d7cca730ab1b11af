// Package pipeline runs the detection loop: camera read, optional
// motion gate, classification, stats merge, live-view publish, and the
// alert decision. Exactly one Orchestrator goroutine writes; HTTP
// readers only touch the exchange and the aggregator.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/vespai/vespai-go/internal/alert"
	"github.com/vespai/vespai-go/internal/exchange"
	"github.com/vespai/vespai-go/internal/logger"
	"github.com/vespai/vespai-go/internal/metrics"
	"github.com/vespai/vespai-go/internal/overlay"
	"github.com/vespai/vespai-go/internal/stats"
	"github.com/vespai/vespai-go/pkg/types"
)

// CameraSource supplies frames. A nil frame without error is a
// transient failure; the loop backs off and retries.
type CameraSource interface {
	ReadFrame(ctx context.Context) (*image.RGBA, error)
}

// Detector classifies one frame. Failures are reported as an error
// beside an empty slice so the loop degrades instead of stopping.
type Detector interface {
	Classify(ctx context.Context, frame *image.RGBA) ([]types.Object, error)
}

// MotionGate decides whether a frame warrants classification.
type MotionGate interface {
	HasMotion(frame *image.RGBA) bool
}

// Alerter dispatches detection alerts, typically *alert.Service. The
// cost is the transport's delivery charge, zero unless the alert was
// sent.
type Alerter interface {
	Notify(ctx context.Context, ev types.DetectionEvent, snapshotID string) (alert.Outcome, float64)
}

// Saver persists detection image pairs to disk.
type Saver interface {
	Save(raw, annotated *image.RGBA) bool
}

// Options tunes the loop.
type Options struct {
	// Pace is the fixed per-iteration delay budget; the loop sleeps
	// its remainder after processing. Caps the maximum loop rate.
	Pace time.Duration
	// ReadBackoff is the sleep after a failed camera read.
	ReadBackoff time.Duration
	// AlertOnCrabro also fires alerts for crabro-only events. Default
	// is velutina only.
	AlertOnCrabro bool
	// DisplayWidth is the live-view downscale target.
	DisplayWidth int
}

func (o Options) withDefaults() Options {
	if o.Pace <= 0 {
		o.Pace = 100 * time.Millisecond
	}
	if o.ReadBackoff <= 0 {
		o.ReadBackoff = 100 * time.Millisecond
	}
	if o.DisplayWidth <= 0 {
		o.DisplayWidth = 960
	}
	return o
}

// Orchestrator is the single long-running detection loop.
type Orchestrator struct {
	cam     CameraSource
	det     Detector
	motion  MotionGate // nil = gate disabled
	exch    *exchange.FrameExchange
	agg     *stats.Aggregator
	alerter Alerter // nil = alerts disabled
	saver   Saver   // nil = saving disabled
	m       *metrics.Metrics
	opts    Options

	frameID    uint64
	fpsCounter int
	fpsSince   time.Time
}

// New builds an orchestrator. A missing camera or detector is fatal:
// the pipeline refuses to start without its collaborators.
func New(cam CameraSource, det Detector, exch *exchange.FrameExchange, agg *stats.Aggregator, m *metrics.Metrics, opts Options) (*Orchestrator, error) {
	if cam == nil {
		return nil, fmt.Errorf("pipeline: camera source is required")
	}
	if det == nil {
		return nil, fmt.Errorf("pipeline: detector is required")
	}
	return &Orchestrator{
		cam:  cam,
		det:  det,
		exch: exch,
		agg:  agg,
		m:    m,
		opts: opts.withDefaults(),
	}, nil
}

// SetMotionGate enables the motion gate.
func (o *Orchestrator) SetMotionGate(g MotionGate) { o.motion = g }

// SetAlerter enables alert dispatch.
func (o *Orchestrator) SetAlerter(a Alerter) { o.alerter = a }

// SetSaver enables detection image saving.
func (o *Orchestrator) SetSaver(s Saver) { o.saver = s }

// Run executes the loop until ctx is cancelled. Cancellation is
// cooperative: the current iteration completes, so a stats merge is
// never torn by shutdown.
func (o *Orchestrator) Run(ctx context.Context) {
	logger.Info("Pipeline", "Detection loop starting (pace=%v, motion=%v)", o.opts.Pace, o.motion != nil)
	o.fpsSince = time.Now()

	for {
		if ctx.Err() != nil {
			logger.Info("Pipeline", "Detection loop stopped after %d frames", o.frameID)
			return
		}

		start := time.Now()
		o.iterate(ctx)
		o.m.UpdateLoopLatency(time.Since(start))

		// Pacing: sleep the remaining budget of the iteration delay.
		if remaining := o.opts.Pace - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(remaining):
			}
		}
	}
}

func (o *Orchestrator) iterate(ctx context.Context) {
	frame, err := o.cam.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.m.ReadErrors.Add(1)
		logger.Warn("Pipeline", "Camera read error: %v", err)
		sleepCtx(ctx, o.opts.ReadBackoff)
		return
	}
	if frame == nil {
		o.m.FramesDropped.Add(1)
		sleepCtx(ctx, o.opts.ReadBackoff)
		return
	}

	o.frameID++
	o.m.FramesRead.Add(1)
	o.trackFPS()

	if o.agg.CheckHourRollover(time.Now()) {
		logger.Info("Pipeline", "Hour rollover, reset current hourly bucket")
	}

	if o.motion != nil && !o.motion.HasMotion(frame) {
		// Static scene: skip classification, keep the live view fresh.
		o.m.FramesSkipped.Add(1)
		o.publish(frame)
		return
	}

	objects, err := o.det.Classify(ctx, frame)
	if err != nil {
		// Degrade for this iteration: publish the unannotated frame
		// and skip detection-dependent stats.
		o.m.DetectErrors.Add(1)
		logger.Warn("Pipeline", "Classifier error at frame %d: %v", o.frameID, err)
		o.publish(frame)
		return
	}

	if len(objects) == 0 {
		o.publish(frame)
		return
	}

	annotated := overlay.Annotate(frame, objects)
	ev := o.mergeEvent(objects)
	snapshotID := o.recordDetections(objects, annotated)
	o.agg.UpdateConfidence(ev.MeanConfidence() * 100)

	if o.saver != nil && o.saver.Save(frame, annotated) {
		o.agg.IncrementSavedImages()
	}

	if o.alerter != nil && (ev.Velutina > 0 || (o.opts.AlertOnCrabro && ev.Crabro > 0)) {
		outcome, cost := o.alerter.Notify(ctx, ev, snapshotID)
		switch outcome {
		case alert.Sent:
			o.m.SMSSent.Add(1)
			o.m.AddSMSCost(cost)
		case alert.Gated:
			o.m.AlertsGated.Add(1)
		case alert.Failed:
			o.m.SMSFailed.Add(1)
		}
	}

	o.publish(annotated)
}

// mergeEvent folds the classified objects into one immutable event.
func (o *Orchestrator) mergeEvent(objects []types.Object) types.DetectionEvent {
	ev := types.DetectionEvent{
		FrameID:     o.frameID,
		Time:        time.Now(),
		Confidences: make([]float64, 0, len(objects)),
	}
	for _, obj := range objects {
		switch obj.Category {
		case types.CategoryVelutina:
			ev.Velutina++
		case types.CategoryCrabro:
			ev.Crabro++
		}
		ev.Confidences = append(ev.Confidences, obj.Confidence)
	}
	return ev
}

func (o *Orchestrator) recordDetections(objects []types.Object, annotated *image.RGBA) string {
	var snapshotID string
	for _, obj := range objects {
		snapshotID = o.agg.RecordDetection(obj.Category, obj.Confidence, o.frameID, annotated)
		switch obj.Category {
		case types.CategoryVelutina:
			o.m.DetectionsVelutina.Add(1)
		case types.CategoryCrabro:
			o.m.DetectionsCrabro.Add(1)
		}
	}
	return snapshotID
}

func (o *Orchestrator) trackFPS() {
	o.fpsCounter++
	if elapsed := time.Since(o.fpsSince); elapsed >= time.Second {
		fps := float64(o.fpsCounter) / elapsed.Seconds()
		o.agg.RecordFrame(o.frameID, fps)
		o.m.CurrentFPS.Store(uint64(fps + 0.5))
		o.fpsCounter = 0
		o.fpsSince = time.Now()
	}
}

// publish pushes the frame to the live view with the status banner.
// Publishing is unconditional so viewers always see the newest frame,
// detection or not.
func (o *Orchestrator) publish(frame *image.RGBA) {
	view := o.agg.Snapshot()
	display := overlay.Downscale(frame, o.opts.DisplayWidth)
	overlay.Banner(display, fmt.Sprintf("Frame %d  FPS %.1f  Velutina %d  Crabro %d",
		o.frameID, view.FPS, view.TotalVelutina, view.TotalCrabro))
	o.exch.Publish(display)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
