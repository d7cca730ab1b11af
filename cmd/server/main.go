package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vespai/vespai-go/internal/alert"
	"github.com/vespai/vespai-go/internal/camera"
	"github.com/vespai/vespai-go/internal/config"
	"github.com/vespai/vespai-go/internal/detect"
	"github.com/vespai/vespai-go/internal/exchange"
	"github.com/vespai/vespai-go/internal/logger"
	"github.com/vespai/vespai-go/internal/metrics"
	"github.com/vespai/vespai-go/internal/motion"
	"github.com/vespai/vespai-go/internal/pipeline"
	"github.com/vespai/vespai-go/internal/stats"
	"github.com/vespai/vespai-go/internal/storage"
	"github.com/vespai/vespai-go/internal/webui"
)

var (
	// Command-line flags
	configPath  = flag.String("config", "", "TOML config file path")
	httpAddr    = flag.String("http", "", "Dashboard HTTP address (overrides config)")
	metricsAddr = flag.String("metrics", "", "Metrics server address (overrides config)")
	pprofAddr   = flag.String("pprof", "", "pprof server address (overrides config)")
	demoMode    = flag.Bool("demo", false, "Run with synthetic camera and demo classifier")
	motionFlag  = flag.Bool("motion", false, "Enable motion gating")
	confFlag    = flag.Float64("conf", 0, "Detection confidence threshold (overrides config)")
	saveFlag    = flag.Bool("save", false, "Save detection images")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

// Server wires the detection pipeline and its HTTP surfaces
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg        config.Config
	m          *metrics.Metrics
	exch       *exchange.FrameExchange
	agg        *stats.Aggregator
	orch       *pipeline.Orchestrator
	httpServer *http.Server
}

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "VespAI detection server starting...")
	logger.Info("Main", "Log level: %s", level)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn("Main", "%s", warning)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	// Flag overrides
	if *httpAddr != "" {
		cfg.Web.Addr = *httpAddr
	}
	if *metricsAddr != "" {
		cfg.Web.MetricsAddr = *metricsAddr
	}
	if *pprofAddr != "" {
		cfg.Web.PprofAddr = *pprofAddr
	}
	if *confFlag > 0 {
		cfg.Detection.Confidence = *confFlag
	}
	if *motionFlag {
		cfg.Motion.Enabled = true
	}
	if *saveFlag {
		cfg.Storage.SaveDetections = true
	}
	return cfg, nil
}

// NewServer assembles the pipeline. A classifier that does not answer
// at startup is fatal; everything else degrades at runtime.
func NewServer(cfg config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()
	exch := exchange.New()
	agg := stats.New()

	var cam pipeline.CameraSource
	var det pipeline.Detector
	if *demoMode {
		logger.Info("Main", "Demo mode: synthetic camera and classifier")
		cam = camera.NewSynthetic(960, 540)
		det = detect.NewDemo(60)
	} else {
		// TODO: wire a V4L2 capture source; the synthetic source stands
		// in until one exists.
		cam = camera.NewSynthetic(cfg.Camera.Width, cfg.Camera.Height)
		client := detect.NewHTTPClient(cfg.Detection.ClassifierURL, cfg.Detection.Confidence)
		pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
		err := client.Ping(pingCtx)
		pingCancel()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("classifier not available: %w", err)
		}
		det = client
	}

	orch, err := pipeline.New(cam, det, exch, agg, m, pipeline.Options{
		Pace:          cfg.Pace(),
		AlertOnCrabro: cfg.SMS.AlertOnCrabro,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if cfg.Motion.Enabled {
		orch.SetMotionGate(motion.NewDetector(cfg.Motion.MinArea, uint8(cfg.Motion.Threshold)))
		logger.Info("Main", "Motion gating enabled (min_area=%d)", cfg.Motion.MinArea)
	}

	gate := alert.NewGate(cfg.SMSDelay())
	var transport alert.Transport
	if cfg.SMS.Enabled && cfg.SMS.APIKey != "" && cfg.SMS.Phone != "" {
		transport = alert.NewLox24Client(cfg.SMS.APIKey, cfg.SMS.Sender)
		logger.Info("Main", "SMS alerts enabled (min interval %v)", cfg.SMSDelay())
	} else {
		logger.Info("Main", "SMS alerts disabled")
	}
	orch.SetAlerter(alert.NewService(gate, transport, agg, cfg.SMS.Phone, cfg.Web.PublicURL))

	if cfg.Storage.SaveDetections {
		saver, err := storage.NewSaver(cfg.Storage.Dir)
		if err != nil {
			cancel()
			return nil, err
		}
		orch.SetSaver(saver)
		logger.Info("Main", "Saving detection images to %s", cfg.Storage.Dir)
	}

	ui := webui.NewServer(webui.Config{Addr: cfg.Web.Addr}, exch, agg)
	httpServer := &http.Server{
		Addr:    cfg.Web.Addr,
		Handler: ui.Handler(),
	}

	return &Server{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		m:          m,
		exch:       exch,
		agg:        agg,
		orch:       orch,
		httpServer: httpServer,
	}, nil
}

// Start starts all server components
func (s *Server) Start() error {
	logger.Info("Main", "Dashboard: %s", s.cfg.Web.Addr)
	logger.Info("Main", "Metrics: %s", s.cfg.Web.MetricsAddr)
	logger.Info("Main", "pprof: %s", s.cfg.Web.PprofAddr)

	// Start pprof server
	go func() {
		if err := http.ListenAndServe(s.cfg.Web.PprofAddr, nil); err != nil {
			logger.Warn("Main", "pprof server error: %v", err)
		}
	}()

	// Start metrics server
	go func() {
		if err := s.m.StartServer(s.cfg.Web.MetricsAddr); err != nil {
			logger.Warn("Main", "Metrics server error: %v", err)
		}
	}()

	// Start dashboard HTTP server
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Main", "HTTP server error: %v", err)
		}
	}()

	// Start detection loop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.orch.Run(s.ctx)
	}()

	logger.Info("Main", "Server started successfully")
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	// Stop the detection loop and wait for the current iteration
	s.cancel()
	s.wg.Wait()

	view := s.agg.Snapshot()
	logger.Info("Main", "Final statistics:")
	logger.Info("Main", "  Frames: %d", view.FrameID)
	logger.Info("Main", "  Total detections: %d", view.TotalDetections)
	logger.Info("Main", "  Velutina: %d  Crabro: %d", view.TotalVelutina, view.TotalCrabro)
	logger.Info("Main", "  SMS sent: %d (cost %.3f)", view.SMSSent, view.SMSCost)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
