package types

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

var (
	QueueTypeRotationEvent = "rotation:event"
)

// NewRotationEventTask wraps a rotation event for the async dispatch queue
func NewRotationEventTask(event *RotationEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeRotationEvent, payload), nil
}
