package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge marks expired user sessions inactive.
	TaskSessionPurge = "session:purge_expired"
)

// NewSessionPurgeTask constructs the purge task. It carries no payload; the
// purge always sweeps the whole sessions table.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}
