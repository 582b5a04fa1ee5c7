package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keywheel/go-keywheel-server/metrics"
	"github.com/keywheel/go-keywheel-server/types"
	"github.com/robfig/cron/v3"
)

// EventSink receives rotation events from the manager and monitor. The
// production sink enqueues them for async dispatch; tests use a recording
// fake.
type EventSink interface {
	Emit(event *types.RotationEvent)
}

// RotationMonitor is a two-state machine (idle / monitoring) driving the
// periodic sweep. A sweep is read-only over the record map: it classifies
// every record and emits overdue / due-soon events, never mutating records.
// Remediation is a separate, externally triggered operation on the manager.
type RotationMonitor struct {
	cron            *cron.Cron
	sink            EventSink
	snapshot        func() map[string]types.RotationRecord
	sweepPeriod     string
	warningInterval time.Duration

	mu         sync.Mutex
	monitoring bool
	entryID    cron.EntryID
}

func NewRotationMonitor(env *types.Environment, sweepPeriod string, warningInterval time.Duration, snapshot func() map[string]types.RotationRecord, sink EventSink) *RotationMonitor {
	if sweepPeriod == "" {
		sweepPeriod = "1h"
	}
	return &RotationMonitor{
		cron:            env.Cron,
		sink:            sink,
		snapshot:        snapshot,
		sweepPeriod:     sweepPeriod,
		warningInterval: warningInterval,
	}
}

// Start transitions idle -> monitoring: registers the periodic sweep and
// runs one immediately. Starting while monitoring replaces the previous
// timer, so there are never two.
func (rm *RotationMonitor) Start() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.monitoring {
		rm.cron.Remove(rm.entryID)
	}
	entryID, err := rm.cron.AddFunc("@every "+rm.sweepPeriod, rm.Sweep)
	if err != nil {
		return err
	}
	rm.entryID = entryID
	rm.monitoring = true
	rm.cron.Start()

	go rm.Sweep() // run once on start
	return nil
}

// Stop transitions monitoring -> idle and cancels the pending tick. No
// sweep fires after Stop returns.
func (rm *RotationMonitor) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.monitoring {
		return
	}
	rm.cron.Remove(rm.entryID)
	rm.monitoring = false
}

// Sweep classifies every record in the current map and emits events for
// overdue and due-soon entries
func (rm *RotationMonitor) Sweep() {
	rm.mu.Lock()
	if !rm.monitoring {
		rm.mu.Unlock()
		return
	}
	rm.mu.Unlock()

	now := time.Now()
	records := rm.snapshot()
	metrics.RotationSweepMetricsCount.Inc()

	for publicKey, record := range records {
		if record.IsOverdue(now) {
			metrics.RotationOverdueMetricsCount.Inc()
			rm.sink.Emit(&types.RotationEvent{
				ID:        uuid.NewString(),
				Type:      types.EventRotationOverdue,
				PublicKey: publicKey,
				Created:   now.UnixMilli(),
			})
		} else if record.NeedsWarning(now, rm.warningInterval) {
			rm.sink.Emit(&types.RotationEvent{
				ID:        uuid.NewString(),
				Type:      types.EventRotationDueSoon,
				PublicKey: publicKey,
				Created:   now.UnixMilli(),
			})
		}
	}
}
