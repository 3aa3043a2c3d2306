package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
)

// TaskIdempotencyCleanup expires consumed idempotency keys.
const TaskIdempotencyCleanup = "idempotency:cleanup"

const defaultIdempotencyTTLHours = 24

// IdempotencyCleaner is the slice of the idempotency store the cleanup
// needs.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupPayload parameterises the cleanup. A non-positive TTL
// falls back to the default.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(olderThanHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThanHours: olderThanHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler returns the asynq handler for the cleanup.
func NewIdempotencyCleanupHandler(cleaner IdempotencyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		hours := payload.OlderThanHours
		if hours <= 0 {
			hours = defaultIdempotencyTTLHours
		}

		tracker := metrics.Track(TaskIdempotencyCleanup)
		removed, err := cleaner.Cleanup(ctx, time.Duration(hours)*time.Hour)
		if err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return tracker.End(err)
		}
		if removed > 0 {
			logger.Info("idempotency cleanup", slog.Int64("removed", removed))
		}
		return tracker.End(nil)
	}
}
