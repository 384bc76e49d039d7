package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"renthaus/internal/config"
	"renthaus/internal/models"
	"renthaus/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	staleAfter time.Duration
	released   int
	err        error
}

func (s *stubSweeper) Sweep(_ context.Context, staleAfter time.Duration) (int, error) {
	s.staleAfter = staleAfter
	return s.released, s.err
}

type stubBackup struct {
	enabled bool
	runs    int
}

func (b *stubBackup) Enabled() bool        { return b.enabled }
func (b *stubBackup) Run(_ context.Context) { b.runs++ }

type stubReporter struct {
	from, to time.Time
	orders   []*models.Order
}

func (r *stubReporter) Transactions(_ context.Context, from, to time.Time) (*service.TransactionReport, error) {
	r.from, r.to = from, to
	return &service.TransactionReport{
		From: from, To: to, Count: len(r.orders), Orders: r.orders,
		TotalRevenue: decimal.NewFromInt(3500), TotalCommission: decimal.NewFromInt(350),
	}, nil
}

var schedules = config.SchedulerConfig{Enabled: true, OutboxSweep: "@every 1m", DailyReport: "30 0 * * *"}

func nopLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestNew_RegistersConfiguredJobs(t *testing.T) {
	s, err := New(schedules, "0 3 * * *", nil, Jobs{
		Outbox:  &stubSweeper{},
		Backup:  &stubBackup{enabled: true},
		Reports: &stubReporter{},
	}, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, s.JobCount())

	s, err = New(schedules, "0 3 * * *", nil, Jobs{
		Outbox: &stubSweeper{},
		Backup: &stubBackup{enabled: false},
	}, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, s.JobCount())
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(config.SchedulerConfig{OutboxSweep: "every minute"}, "", nil, Jobs{Outbox: &stubSweeper{}}, nopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox_sweep")
}

func TestSweepOutbox(t *testing.T) {
	sweeper := &stubSweeper{released: 2}
	s, err := New(schedules, "", nil, Jobs{Outbox: sweeper, StaleAfter: 30 * time.Second}, nopLogger())
	require.NoError(t, err)

	n, err := s.SweepOutbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 30*time.Second, sweeper.staleAfter)

	sweeper.err = errors.New("db down")
	_, err = s.SweepOutbox(context.Background())
	assert.Error(t, err)
}

func TestExportDailyReport(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)

	reporter := &stubReporter{orders: []*models.Order{{
		ID: "O1", ProductTitle: "Marquee tent", Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid,
		TotalAmount: decimal.NewFromInt(3500), Commission: decimal.NewFromInt(350),
	}}}
	dir := filepath.Join(t.TempDir(), "exports")
	s, err := New(schedules, "", loc, Jobs{Reports: reporter, ExportDir: dir}, nopLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2030, 6, 2, 0, 10, 0, 0, time.UTC) }

	paths, err := s.ExportDailyReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2030, 6, 1, 0, 0, 0, 0, loc), reporter.from)
	assert.Equal(t, time.Date(2030, 6, 2, 0, 0, 0, 0, loc), reporter.to)
	assert.Equal(t, []string{
		filepath.Join(dir, "transactions_2030-06-01.csv"),
		filepath.Join(dir, "transactions_2030-06-01.xlsx"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "O1,")
	assert.FileExists(t, paths[1])
}

func TestStartStop(t *testing.T) {
	s, err := New(schedules, "", nil, Jobs{Outbox: &stubSweeper{}}, nopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop()
}
