// Package config defines the runtime configuration for the detection
// server, loadable from a TOML file with command-line flag overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Web       WebConfig       `toml:"web"`
	Camera    CameraConfig    `toml:"camera"`
	Detection DetectionConfig `toml:"detection"`
	Motion    MotionConfig    `toml:"motion"`
	SMS       SMSConfig       `toml:"sms"`
	Storage   StorageConfig   `toml:"storage"`
}

// WebConfig configures the dashboard HTTP server.
type WebConfig struct {
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
	PprofAddr   string `toml:"pprof_addr"`
	PublicURL   string `toml:"public_url"` // base URL embedded in SMS links
}

// CameraConfig configures the frame source.
type CameraConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// DetectionConfig configures the classifier client and loop pacing.
type DetectionConfig struct {
	ClassifierURL string  `toml:"classifier_url"`
	Confidence    float64 `toml:"confidence"`
	PaceMs        int     `toml:"pace_ms"` // per-iteration delay budget
}

// MotionConfig configures the optional motion gate.
type MotionConfig struct {
	Enabled   bool `toml:"enabled"`
	MinArea   int  `toml:"min_area"`
	Threshold int  `toml:"threshold"`
}

// SMSConfig configures the LOX24 alert transport.
type SMSConfig struct {
	Enabled       bool   `toml:"enabled"`
	APIKey        string `toml:"api_key"`
	Sender        string `toml:"sender"`
	Phone         string `toml:"phone"`
	DelayMinutes  int    `toml:"delay_minutes"`
	AlertOnCrabro bool   `toml:"alert_on_crabro"`
}

// StorageConfig configures detection image saving.
type StorageConfig struct {
	SaveDetections bool   `toml:"save_detections"`
	Dir            string `toml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Web: WebConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
			PprofAddr:   ":6060",
			PublicURL:   "http://localhost:8080",
		},
		Camera: CameraConfig{Width: 1920, Height: 1080},
		Detection: DetectionConfig{
			ClassifierURL: "http://localhost:8500",
			Confidence:    0.8,
			PaceMs:        100,
		},
		Motion: MotionConfig{MinArea: 100, Threshold: 25},
		SMS: SMSConfig{
			Enabled:      true,
			Sender:       "VespAI",
			DelayMinutes: 5,
		},
		Storage: StorageConfig{Dir: "monitor/detections"},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected
// so typos surface at startup instead of silently using defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0])
	}
	return cfg, nil
}

// SMSDelay returns the minimum inter-alert interval.
func (c Config) SMSDelay() time.Duration {
	return time.Duration(c.SMS.DelayMinutes) * time.Minute
}

// Pace returns the per-iteration delay budget of the detection loop.
func (c Config) Pace() time.Duration {
	return time.Duration(c.Detection.PaceMs) * time.Millisecond
}

// Warnings reports non-fatal configuration problems, mirroring what the
// operator needs to know at startup.
func (c Config) Warnings() []string {
	var warnings []string
	if c.SMS.Enabled {
		if c.SMS.APIKey == "" {
			warnings = append(warnings, "sms.api_key not set - SMS alerts disabled")
		}
		if c.SMS.Phone == "" {
			warnings = append(warnings, "sms.phone not set - SMS alerts disabled")
		}
	}
	if c.Storage.SaveDetections {
		if _, err := os.Stat(c.Storage.Dir); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("storage.dir %s does not exist yet, it will be created", c.Storage.Dir))
		}
	}
	return warnings
}
