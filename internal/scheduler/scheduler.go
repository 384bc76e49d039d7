// Package scheduler runs the periodic maintenance jobs: outbox sweep,
// sqlite backup and the daily transactions export.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"renthaus/internal/calendar"
	"renthaus/internal/config"
	"renthaus/internal/export"
	"renthaus/internal/models"
	"renthaus/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	jobTimeout        = 5 * time.Minute
	defaultStaleAfter = 5 * time.Minute
)

type OutboxSweeper interface {
	Sweep(ctx context.Context, staleAfter time.Duration) (int, error)
}

type BackupRunner interface {
	Enabled() bool
	Run(ctx context.Context)
}

type TransactionReporter interface {
	Transactions(ctx context.Context, from, to time.Time) (*service.TransactionReport, error)
}

// Jobs holds the job targets. A nil target leaves its job unregistered.
type Jobs struct {
	Outbox     OutboxSweeper
	StaleAfter time.Duration
	Backup     BackupRunner
	Reports    TransactionReporter
	ExportDir  string
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	loc    *time.Location
	logger *zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
}

func New(cfg config.SchedulerConfig, backupSchedule string, loc *time.Location, jobs Jobs, logger *zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if jobs.StaleAfter <= 0 {
		jobs.StaleAfter = defaultStaleAfter
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		jobs:    jobs,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		baseCtx: context.Background(),
	}

	if jobs.Outbox != nil {
		if err := s.add("outbox_sweep", cfg.OutboxSweep, func(ctx context.Context) error {
			_, err := s.SweepOutbox(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if jobs.Backup != nil && jobs.Backup.Enabled() {
		if err := s.add("backup", backupSchedule, func(ctx context.Context) error {
			jobs.Backup.Run(ctx)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if jobs.Reports != nil {
		if err := s.add("daily_report", cfg.DailyReport, func(ctx context.Context) error {
			_, err := s.ExportDailyReport(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Cron jobs registered")
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.context(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
			return
		}
		s.logger.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Start begins the cron scheduler. Running jobs see ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.logger.Info().Msg("Starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Cron scheduler stopped")
}

func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) SweepOutbox(ctx context.Context) (int, error) {
	released, err := s.jobs.Outbox.Sweep(ctx, s.jobs.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep outbox: %w", err)
	}
	if released > 0 {
		s.logger.Warn().Int("released", released).Msg("Released stale outbox tasks")
	}
	return released, nil
}

// ExportDailyReport writes yesterday's transactions as CSV and XLSX and
// returns the written paths.
func (s *Scheduler) ExportDailyReport(ctx context.Context) ([]string, error) {
	today := calendar.Midnight(s.now().In(s.loc))
	from := today.AddDate(0, 0, -1)

	report, err := s.jobs.Reports.Transactions(ctx, from, today)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily report: %w", err)
	}
	rows := export.Rows(report.Orders)
	prefix := "transactions_" + from.Format(models.DateLayout)

	var paths []string
	for _, format := range []export.Format{export.FormatCSV, export.FormatXLSX} {
		path, err := export.WriteFile(s.jobs.ExportDir, prefix, format, rows)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	s.logger.Info().
		Str("day", from.Format(models.DateLayout)).
		Int("orders", report.Count).
		Str("revenue", report.TotalRevenue.StringFixed(2)).
		Msg("Daily transactions report exported")
	return paths, nil
}
