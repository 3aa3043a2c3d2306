// Package jobs wires background work: the asynq worker, the standing cron
// schedule and the task handlers.
package jobs

// QueueDefault is the queue all dropzone tasks run on.
const QueueDefault = "default"

// Schedule returns the standing cron registrations: the load status sweep
// every 30 seconds, the audit trim nightly and the idempotency-key cleanup
// hourly.
func Schedule(auditRetentionDays int) ([]CronRegistration, error) {
	trim, err := NewAuditTrimTask(auditRetentionDays)
	if err != nil {
		return nil, err
	}
	cleanup, err := NewIdempotencyCleanupTask(0)
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: "@every 30s", Task: NewLoadStatusSweepTask()},
		{Spec: "0 3 * * *", Task: trim},
		{Spec: "30 * * * *", Task: cleanup},
	}, nil
}
