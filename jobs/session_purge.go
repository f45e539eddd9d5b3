package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sentra-admin/sentra-admin/internal/session"
)

// SessionPurgeJob sweeps expired sessions out of the registry.
type SessionPurgeJob struct {
	registry session.Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// NewSessionPurgeJob constructs the purge job. metrics may be nil.
func NewSessionPurgeJob(registry session.Registry, logger *slog.Logger, metrics *Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{registry: registry, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("session_purge")
	count, err := j.registry.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("purge expired sessions", slog.Any("error", err))
		return tracker.End(err)
	}
	if count > 0 {
		j.logger.Info("purged expired sessions", slog.Int64("count", count))
	}
	return tracker.End(nil)
}
