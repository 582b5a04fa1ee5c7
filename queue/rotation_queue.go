package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/types"
)

// redis channel UI processes subscribe to for rotation notifications
const EventChannel = "keywheel:events"

// RotationEventQueue processes queued rotation events: logs them and fans
// them out on a redis channel for wallet UI processes
type RotationEventQueue struct {
	env *types.Environment
}

func NewRotationEventQueue(env *types.Environment) *RotationEventQueue {
	return &RotationEventQueue{env: env}
}

// Processing of rotation event tasks
func (req *RotationEventQueue) ProcessRotationEventTask(ctx context.Context, t *asynq.Task) error {
	var event types.RotationEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	switch event.Type {
	case types.EventRotationOverdue, types.EventRotationDueSoon:
		global.Logger.Log("event", event.Type, "publicKey", event.PublicKey)
	case types.EventSendRotationPacket:
		global.Logger.Log("event", event.Type, "recipient", event.Recipient, "payloadBytes", len(event.Payload))
	default:
		return fmt.Errorf("unexpected event type: %s, %w", event.Type, asynq.SkipRetry)
	}

	if req.env != nil && req.env.RedisClient != nil {
		notification, _ := json.Marshal(&event)
		if pErr := req.env.RedisClient.Publish(ctx, EventChannel, notification).Err(); pErr != nil {
			level.Warn(global.Logger).Log("msg", "failed to publish rotation event", "err", pErr)
		}
	}
	return nil
}
