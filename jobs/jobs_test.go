package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
	"github.com/dropzone-hq/dropzone/internal/loads"
	_ "github.com/dropzone-hq/dropzone/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSweeper struct {
	transitions []loads.Transition
	err         error
	calls       int
}

func (s *stubSweeper) Sweep(context.Context) ([]loads.Transition, error) {
	s.calls++
	return s.transitions, s.err
}

type stubTrimmer struct {
	retention time.Duration
	removed   int64
	err       error
}

func (s *stubTrimmer) Trim(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, s.err
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func TestLoadStatusSweepHandler(t *testing.T) {
	sweeper := &stubSweeper{transitions: []loads.Transition{
		{LoadID: 1, To: loads.StatusOnCall},
		{LoadID: 2, To: loads.StatusDeparted},
	}}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	handler := NewLoadStatusSweepHandler(sweeper, metrics, testLogger())

	err := handler(context.Background(), NewLoadStatusSweepTask())
	require.NoError(t, err)
	require.Equal(t, 1, sweeper.calls)
}

func TestLoadStatusSweepHandlerPropagatesError(t *testing.T) {
	boom := errors.New("pool closed")
	sweeper := &stubSweeper{err: boom}
	handler := NewLoadStatusSweepHandler(sweeper, nil, testLogger())

	err := handler(context.Background(), NewLoadStatusSweepTask())
	require.ErrorIs(t, err, boom)
}

func TestAuditTrimHandlerDefaultsRetention(t *testing.T) {
	trimmer := &stubTrimmer{removed: 12}
	handler := NewAuditTrimHandler(trimmer, nil, testLogger())

	task, err := NewAuditTrimTask(0)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 90*24*time.Hour, trimmer.retention)

	task, err = NewAuditTrimTask(30)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 30*24*time.Hour, trimmer.retention)
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	cleaner := &stubCleaner{removed: 3}
	handler := NewIdempotencyCleanupHandler(cleaner, nil, testLogger())

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 24*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupHandlerSkipsBadPayload(t *testing.T) {
	handler := NewIdempotencyCleanupHandler(&stubCleaner{}, nil, testLogger())

	err := handler(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScheduleRegistersStandingTasks(t *testing.T) {
	entries, err := Schedule(90)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	specs := map[string]string{}
	for _, entry := range entries {
		specs[entry.Task.Type()] = entry.Spec
	}
	require.Equal(t, map[string]string{
		TaskLoadStatusSweep:    "@every 30s",
		TaskAuditTrim:          "0 3 * * *",
		TaskIdempotencyCleanup: "30 * * * *",
	}, specs)
}
