package sidecar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"minder/internal/config"
	"minder/internal/history"
	"minder/internal/logging"
	"minder/internal/settings"
	"minder/internal/statusdoc"
)

// Recorder receives one sample per successful chain query. *history.Store
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, sample history.Sample) error
}

// Sidecar runs the telemetry poll loop for the life of the process.
type Sidecar struct {
	collector *Collector
	statsPath string
	interval  time.Duration
	recorder  Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a sidecar from the supervisor config, the settings document,
// and the advertised RPC onion address. recorder may be nil when history is
// disabled.
func New(cfg *config.Config, doc *settings.Document, rpcAddr string, recorder Recorder, logger *slog.Logger) *Sidecar {
	sidecarLogger := logging.NewComponentLogger(logger, "sidecar")
	return &Sidecar{
		collector: NewCollector(cfg, doc, rpcAddr, logger),
		statsPath: cfg.Paths.StatsPath,
		interval:  time.Duration(cfg.Telemetry.PollInterval) * time.Second,
		recorder:  recorder,
		logger:    sidecarLogger,
	}
}

// Start launches the poll loop. It polls once immediately, then on every
// interval tick until the context is cancelled.
func (s *Sidecar) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sidecar already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (s *Sidecar) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Sidecar) loop() {
	defer s.wg.Done()

	s.poll()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// poll runs one telemetry cycle. Failures are logged and absorbed; the next
// tick always gets a fresh attempt.
func (s *Sidecar) poll() {
	ctx := s.ctx
	if ctx == nil {
		return
	}

	doc, sample, err := s.collector.Cycle(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("telemetry cycle failed", logging.Error(err))
		}
		return
	}
	if doc == nil {
		// Daemon is warming up; the previously published document stands.
		return
	}

	if err := statusdoc.Publish(s.statsPath, doc); err != nil {
		s.logger.Error("publish status document", logging.Error(err))
		return
	}

	if s.recorder != nil && sample != nil {
		if err := s.recorder.Record(ctx, *sample); err != nil {
			s.logger.Warn("record telemetry sample", logging.Error(err))
		}
	}
}
