package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
	"github.com/dropzone-hq/dropzone/internal/loads"
)

// TaskLoadStatusSweep advances overdue load statuses.
const TaskLoadStatusSweep = "loads:status_sweep"

// LoadSweeper is the slice of the loads service the sweep needs.
type LoadSweeper interface {
	Sweep(ctx context.Context) ([]loads.Transition, error)
}

// NewLoadStatusSweepTask builds the sweep task. It carries no payload; the
// sweep always works from the current clock.
func NewLoadStatusSweepTask() *asynq.Task {
	return asynq.NewTask(TaskLoadStatusSweep, nil, asynq.Queue(QueueDefault))
}

// NewLoadStatusSweepHandler returns the asynq handler for the sweep. The
// loads service logs each transition itself, so the handler only reports
// failures and non-empty runs.
func NewLoadStatusSweepHandler(sweeper LoadSweeper, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskLoadStatusSweep)
		transitions, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("load status sweep", slog.Any("error", err))
			return tracker.End(err)
		}
		if len(transitions) > 0 {
			logger.Info("load status sweep", slog.Int("transitions", len(transitions)))
		}
		return tracker.End(nil)
	}
}
