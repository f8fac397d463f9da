package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/observability"
)

// Scheduler states. Transitions go through compare-and-swap so concurrent
// triggers can never start overlapping scans.
const (
	stateIdle int32 = iota
	stateScanning
)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Monitoring      bool       `json:"monitoring"`
	Scanning        bool       `json:"scanning"`
	CurrentActivity string     `json:"current_activity"`
	LastCheckAt     *time.Time `json:"last_check_at"`
}

// Scheduler runs periodic playlist scans, either on a fixed interval or a
// cron schedule, and serializes them with manually triggered ones.
type Scheduler struct {
	reconciler *Reconciler
	cfg        config.MonitorConfig
	logger     *slog.Logger

	state      atomic.Int32
	monitoring atomic.Bool

	mu        sync.RWMutex
	activity  string
	lastCheck *time.Time

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler around the reconciler.
func NewScheduler(reconciler *Reconciler, cfg config.MonitorConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		reconciler: reconciler,
		cfg:        cfg,
		logger:     observability.WithComponent(logger, "scheduler"),
		activity:   "Idle",
	}
	reconciler.SetActivityFunc(s.setActivity)
	return s
}

// Start launches the background scan loop and fires an initial scan.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.Cron != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.Cron, func() {
			if err := s.TriggerScan(); err != nil {
				s.logger.Debug("scheduled scan not started", slog.String("reason", err.Error()))
			}
		}); err != nil {
			return fmt.Errorf("parsing cron schedule %q: %w", s.cfg.Cron, err)
		}
		c.Start()
		s.cron = c
		s.logger.Info("monitoring started", slog.String("cron", s.cfg.Cron))
	} else {
		s.wg.Add(1)
		go s.intervalLoop()
		s.logger.Info("monitoring started", slog.Duration("interval", s.cfg.CheckInterval))
	}

	s.monitoring.Store(true)

	// First cycle runs right away so a restart never waits a full interval.
	if err := s.TriggerScan(); err != nil {
		s.logger.Debug("initial scan not started", slog.String("reason", err.Error()))
	}
	return nil
}

// Stop cancels the loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.monitoring.Store(false)
	s.logger.Info("monitoring stopped")
}

func (s *Scheduler) intervalLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.TriggerScan(); err != nil {
				s.logger.Debug("scheduled scan not started", slog.String("reason", err.Error()))
			}
		}
	}
}

// TriggerScan starts a scan in the background. It returns
// models.ErrScanInProgress when a scan is already running.
func (s *Scheduler) TriggerScan() error {
	if !s.state.CompareAndSwap(stateIdle, stateScanning) {
		return models.ErrScanInProgress
	}

	s.wg.Add(1)
	go s.runScan()
	return nil
}

// ScanPlaylistAsync scans a single playlist in the background, used for the
// initial fetch right after a playlist is added. Returns
// models.ErrScanInProgress when a full scan is running.
func (s *Scheduler) ScanPlaylistAsync(playlist *models.Playlist) error {
	if !s.state.CompareAndSwap(stateIdle, stateScanning) {
		return models.ErrScanInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finishScan()

		if _, err := s.reconciler.ScanPlaylist(s.scanContext(), playlist); err != nil {
			s.logger.Error("initial playlist scan failed",
				slog.String("playlist", playlist.DisplayName()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

func (s *Scheduler) runScan() {
	defer s.wg.Done()
	defer s.finishScan()

	start := time.Now()
	s.setActivity("Scanning playlists")

	if _, err := s.reconciler.ScanAll(s.scanContext()); err != nil {
		s.logger.Error("scan cycle failed", slog.String("error", err.Error()))
		return
	}

	s.logger.Info("scan cycle complete", slog.Duration("duration", time.Since(start)))
}

// finishScan restores the idle state no matter how the scan ended. A panic
// inside a scan must never wedge the scheduler in Scanning.
func (s *Scheduler) finishScan() {
	if r := recover(); r != nil {
		s.logger.Error("scan panicked",
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())),
		)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastCheck = &now
	s.mu.Unlock()

	s.setActivity("Idle")
	s.state.Store(stateIdle)
}

// scanContext returns the lifecycle context scans run under. Triggered
// scans outlive the HTTP request that started them.
func (s *Scheduler) scanContext() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

func (s *Scheduler) setActivity(activity string) {
	s.mu.Lock()
	s.activity = activity
	s.mu.Unlock()
}

// Scanning reports whether a scan is currently running.
func (s *Scheduler) Scanning() bool {
	return s.state.Load() == stateScanning
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		Monitoring:      s.monitoring.Load(),
		Scanning:        s.state.Load() == stateScanning,
		CurrentActivity: s.activity,
		LastCheckAt:     s.lastCheck,
	}
}
