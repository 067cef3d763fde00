package worker

import "github.com/hibiken/asynq"

// TaskStaleSweep is the only background job this service runs: demoting
// Processed requests the post-processor never finalized.
const TaskStaleSweep = "stale:sweep"

// QueueDefault is the single asynq queue this service uses.
const QueueDefault = "default"

// NewStaleSweepTask creates an asynq task for the stale-sweep job. It carries
// no payload: the handler reads its threshold from its own configuration.
func NewStaleSweepTask() *asynq.Task {
	return asynq.NewTask(TaskStaleSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
