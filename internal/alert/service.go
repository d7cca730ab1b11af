package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/vespai/vespai-go/internal/logger"
	"github.com/vespai/vespai-go/internal/stats"
	"github.com/vespai/vespai-go/pkg/types"
)

// Service formats detection alerts and dispatches them through the
// transport, subject to the gate. Gate acquisition and stats mutation
// are locked internally by their owners; the transport send itself
// happens outside any lock.
type Service struct {
	gate      *Gate
	transport Transport
	agg       *stats.Aggregator
	recipient string
	publicURL string
	now       func() time.Time
}

// NewService wires the alert path. transport may be nil, in which case
// alerts are logged but never sent (SMS disabled).
func NewService(gate *Gate, transport Transport, agg *stats.Aggregator, recipient, publicURL string) *Service {
	return &Service{
		gate:      gate,
		transport: transport,
		agg:       agg,
		recipient: recipient,
		publicURL: publicURL,
		now:       time.Now,
	}
}

// Outcome reports what happened to one alert attempt.
type Outcome int

const (
	// Sent means the transport confirmed delivery.
	Sent Outcome = iota
	// Gated means the rate gate suppressed the alert.
	Gated
	// Failed means the gate was acquired but the transport failed.
	// The interval is consumed anyway.
	Failed
	// Disabled means no transport is configured.
	Disabled
)

// Notify attempts to send an SMS for the detection event. Velutina
// detections alert; crabro-only events send a lower-priority info
// message. Returns the outcome and, for a sent message, the delivery
// cost reported by the transport.
//
// A gate acquisition whose send then fails still consumes the interval:
// retrying without consuming it would reintroduce the spam the gate
// exists to prevent.
func (s *Service) Notify(ctx context.Context, ev types.DetectionEvent, snapshotID string) (Outcome, float64) {
	if ev.Total() == 0 {
		return Disabled, 0
	}

	now := s.now()
	message := s.formatMessage(ev, snapshotID, now)

	if s.transport == nil {
		logger.Info("SMS", "[disabled] Would send: %s", message)
		return Disabled, 0
	}

	if !s.gate.TryAcquire(now, false) {
		logger.Info("SMS", "Rate limited, next alert allowed in %.1f minutes", s.gate.Remaining(now).Minutes())
		return Gated, 0
	}

	delivery, err := s.transport.Send(ctx, s.recipient, message)
	if err != nil || !delivery.OK {
		logger.Error("SMS", "Failed to send alert: %v", err)
		return Failed, 0
	}

	s.agg.IncrementSMSSent(delivery.Cost, now)
	s.agg.AddLogEntry(stats.LogEntry{
		Time:       now.Format("15:04:05"),
		Message:    fmt.Sprintf("SMS alert sent: %s", message),
		Category:   "sms",
		SnapshotID: snapshotID,
	})
	logger.Info("SMS", "Alert sent (cost %.3f): %s", delivery.Cost, message)
	return Sent, delivery.Cost
}

func (s *Service) formatMessage(ev types.DetectionEvent, snapshotID string, now time.Time) string {
	frameURL := fmt.Sprintf("%s/frame/%s", s.publicURL, snapshotID)
	clock := now.Format("15:04")

	if ev.Velutina > 0 {
		return fmt.Sprintf("ALERT: %d Asian Hornet(s) detected at %s! View: %s", ev.Velutina, clock, frameURL)
	}
	return fmt.Sprintf("Info: %d European Hornet(s) detected at %s. View: %s", ev.Crabro, clock, frameURL)
}
