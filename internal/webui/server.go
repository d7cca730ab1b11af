// Package webui serves the dashboard: the live MJPEG view, the stats
// API, and the snapshot-by-id accessor. Handlers only read the frame
// exchange and the stats aggregator; the detection loop is the sole
// writer.
package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vespai/vespai-go/internal/exchange"
	"github.com/vespai/vespai-go/internal/stats"
)

// Config defines the runtime configuration for the dashboard server.
type Config struct {
	Addr           string
	StatusInterval time.Duration // SSE stats push cadence
	StreamInterval time.Duration // MJPEG frame cadence
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		StatusInterval: 2 * time.Second,
		StreamInterval: 50 * time.Millisecond,
	}
}

// Server serves the dashboard endpoints.
type Server struct {
	cfg  Config
	exch *exchange.FrameExchange
	agg  *stats.Aggregator
}

// NewServer returns a configured dashboard server.
func NewServer(cfg Config, exch *exchange.FrameExchange, agg *stats.Aggregator) *Server {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultConfig().StreamInterval
	}
	return &Server{cfg: cfg, exch: exch, agg: agg}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/video_feed", s.handleVideoFeed)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/stream", s.handleStatsStream)
	mux.HandleFunc("/frame/", s.handleFrame)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	streamMJPEG(r.Context(), w, s.cfg.StreamInterval, func() ([]byte, bool) {
		img, ok := s.exch.Latest()
		if !ok {
			return nil, false
		}
		data, err := encodeJPEG(img)
		if err != nil {
			return nil, false
		}
		return data, true
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsPayload(s.agg.Snapshot()))
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, statsPayload(s.agg.Snapshot())); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/frame/")
	if id == "" {
		writeJSONWithStatus(w, map[string]any{"error": "missing frame id"}, http.StatusBadRequest)
		return
	}

	img, ok := s.agg.SnapshotImage(id)
	if !ok {
		writeJSONWithStatus(w, map[string]any{"error": "frame not found"}, http.StatusNotFound)
		return
	}

	data, err := encodeJPEG(img)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "encode failed"}, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=86400")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.agg.Snapshot()
	_, hasFrame := s.exch.Latest()
	writeJSON(w, map[string]any{
		"status":     "ok",
		"has_frame":  hasFrame,
		"frame_id":   view.FrameID,
		"detections": view.TotalDetections,
	})
}

// statsPayload shapes a StatsView into the dashboard API response.
func statsPayload(view stats.StatsView) map[string]any {
	uptime := time.Since(view.StartTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	detectionRate := 0.0
	if uptime > 0 {
		detectionRate = float64(view.TotalDetections) / uptime.Hours()
	}

	hourly := make([]map[string]any, 0, 24)
	for i := 0; i < 24; i++ {
		hour := (view.CurrentHour - 23 + i + 24) % 24
		b := view.Hourly[hour]
		hourly = append(hourly, map[string]any{
			"hour":     hour,
			"velutina": b.Velutina,
			"crabro":   b.Crabro,
			"total":    b.Velutina + b.Crabro,
		})
	}

	return map[string]any{
		"frame_id":         view.FrameID,
		"total_velutina":   view.TotalVelutina,
		"total_crabro":     view.TotalCrabro,
		"total_detections": view.TotalDetections,
		"fps":              view.FPS,
		"uptime":           fmt.Sprintf("%dh %dm", hours, minutes),
		"saved_images":     view.SavedImages,
		"sms_sent":         view.SMSSent,
		"sms_cost":         view.SMSCost,
		"detection_rate":   round1(detectionRate),
		"detection_log":    view.Log,
		"hourly_stats":     hourly,
		"last_velutina":    lastLogTime(view.Log, "velutina"),
		"last_crabro":      lastLogTime(view.Log, "crabro"),
		"last_sms":         formatTime(view.LastSMSAt),
		"confidence_avg":   round1(view.ConfidencePct),
		"timestamp":        float64(time.Now().Unix()),
	}
}

func lastLogTime(log []stats.LogEntry, category string) any {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Category == category {
			return log[i].Time
		}
	}
	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format("15:04:05")
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
