package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
)

// TaskAuditTrim deletes audit entries older than the retention window.
const TaskAuditTrim = "audit:trim"

const defaultAuditRetentionDays = 90

// AuditTrimmer is the slice of the audit logger the trim needs.
type AuditTrimmer interface {
	Trim(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditTrimPayload parameterises the trim. A non-positive retention falls
// back to the default window.
type AuditTrimPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditTrimTask builds the trim task.
func NewAuditTrimTask(retentionDays int) (*asynq.Task, error) {
	body, err := json.Marshal(AuditTrimPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditTrim, body, asynq.Queue(QueueDefault)), nil
}

// NewAuditTrimHandler returns the asynq handler for the trim.
func NewAuditTrimHandler(trimmer AuditTrimmer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditTrimPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		days := payload.RetentionDays
		if days <= 0 {
			days = defaultAuditRetentionDays
		}

		tracker := metrics.Track(TaskAuditTrim)
		removed, err := trimmer.Trim(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			logger.Error("audit trim", slog.Any("error", err))
			return tracker.End(err)
		}
		if removed > 0 {
			logger.Info("audit trim",
				slog.Int64("removed", removed),
				slog.Int("retention_days", days))
		}
		return tracker.End(nil)
	}
}
