package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskforge/taskforge/pkg/logger"
)

// Sweeper periodically runs OverdueScan and reports per-project overdue
// counts through the observer.
type Sweeper struct {
	svc      *Service
	cron     *cron.Cron
	interval time.Duration
	observe  func(projectID string, overdue int)
	log      *logger.Logger
}

// NewSweeper builds a sweeper. interval <= 0 defaults to one hour; a nil
// observer drops counts after logging them.
func NewSweeper(svc *Service, interval time.Duration, observe func(projectID string, overdue int), log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.NewDefault("overdue-sweeper")
	}
	return &Sweeper{
		svc:      svc,
		cron:     cron.New(),
		interval: interval,
		observe:  observe,
		log:      log,
	}
}

// Name identifies the sweeper to the system manager.
func (s *Sweeper) Name() string { return "overdue-sweeper" }

// Start registers the periodic job and starts the scheduler.
func (s *Sweeper) Start(_ context.Context) error {
	spec := fmt.Sprintf("@every %ds", int(s.interval.Seconds()))
	if _, err := s.cron.AddFunc(spec, s.Run); err != nil {
		return fmt.Errorf("schedule overdue sweep: %w", err)
	}
	s.cron.Start()
	s.log.WithField("interval", s.interval.String()).Info("overdue sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop(_ context.Context) error {
	ctx := s.cron.Stop()
	<-ctx.Done()
	return nil
}

// Run executes one sweep immediately.
func (s *Sweeper) Run() {
	counts, err := s.svc.OverdueScan(context.Background(), time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Error("overdue scan failed")
		return
	}
	total := 0
	for projectID, n := range counts {
		total += n
		if s.observe != nil {
			s.observe(projectID, n)
		}
	}
	s.log.WithField("projects", len(counts)).WithField("overdue", total).Info("overdue sweep complete")
}
