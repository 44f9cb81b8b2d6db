// Package scheduler provides cron-based scheduling for automated pipeline
// runs (ingest, embed, extract) while the API server is up.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
)

// PipelineFunc runs one full pipeline pass.
type PipelineFunc func(ctx context.Context) error

// Status describes the scheduled pipeline job.
type Status struct {
	Schedule string    `json:"schedule"`
	Running  bool      `json:"running"`
	LastRun  time.Time `json:"last_run,omitempty"`
	NextRun  time.Time `json:"next_run"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Scheduler runs the pipeline on a cron schedule. Overlapping runs are
// skipped, not queued.
type Scheduler struct {
	cron     *cron.Cron
	pipeline PipelineFunc
	logger   *slog.Logger

	mu       sync.Mutex
	entryID  cron.EntryID
	schedule string
	running  bool
	lastRun  time.Time
	lastErr  error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler with the given pipeline callback.
func New(pipeline PipelineFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		pipeline: pipeline,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule registers the pipeline under the given cron expression.
func (s *Scheduler) Schedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, s.run)
	if err != nil {
		return eris.Wrapf(err, "invalid cron expression %q", expr)
	}
	s.entryID = id
	s.schedule = expr
	return nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("pipeline run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	s.logger.Info("scheduled pipeline run starting")
	err := s.pipeline(s.ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled pipeline run failed", "error", err)
		return
	}
	s.logger.Info("scheduled pipeline run complete")
}

// Start begins cron dispatch.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts cron dispatch, cancels any in-flight run, and waits for it
// to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cancel()
	s.wg.Wait()
}

// Status reports the current job state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule: s.schedule,
		Running:  s.running,
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		st.LastErr = s.lastErr.Error()
	}
	if entry := s.cron.Entry(s.entryID); entry.ID == s.entryID {
		st.NextRun = entry.Next
	}
	return st
}
