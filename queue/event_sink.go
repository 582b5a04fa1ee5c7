package queue

import (
	"time"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/types"
)

// QueueEventSink is the production notification collaborator: rotation
// events become asynq tasks. Enqueue failures are logged and dropped, the
// rotation core never blocks or fails on notification delivery.
type QueueEventSink struct {
	taskClient *asynq.Client
}

func NewQueueEventSink(taskClient *asynq.Client) *QueueEventSink {
	return &QueueEventSink{taskClient: taskClient}
}

func (s *QueueEventSink) Emit(event *types.RotationEvent) {
	task, err := types.NewRotationEventTask(event)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to create rotation event task", "err", err)
		return
	}
	_, eErr := s.taskClient.Enqueue(task,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.TaskID(event.ID))
	if eErr != nil {
		level.Warn(global.Logger).Log("msg", "failed to enqueue rotation event", "type", event.Type, "err", eErr)
	}
}
