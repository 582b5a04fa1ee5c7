package services

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/metrics"
	"github.com/keywheel/go-keywheel-server/types"
	"golang.org/x/sync/errgroup"
)

const rotateOverdueConcurrency = 4

// RotationManager owns the authoritative in-memory record map and wires the
// store, protocol and monitor together. Rotate and HandleIncoming may be
// called from any goroutine concurrently with sweeps; every read-modify-write
// of the map happens under the mutex. The lock is NOT held across transport
// delivery, only across the post-success update-and-persist step, so an
// interleaved HandleIncoming for the same peer is last-writer-wins.
type RotationManager struct {
	mu      sync.RWMutex
	records map[string]types.RotationRecord

	store            *RotationStore
	protocol         *RotationProtocol
	monitor          *RotationMonitor
	sink             EventSink
	rotationInterval time.Duration
}

func NewRotationManager(env *types.Environment, store *RotationStore, protocol *RotationProtocol, sink EventSink, conf global.KeywheelConfig) *RotationManager {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	rm := &RotationManager{
		records:          store.Load(ctx),
		store:            store,
		protocol:         protocol,
		sink:             sink,
		rotationInterval: conf.RotationInterval(),
	}
	rm.monitor = NewRotationMonitor(env, conf.SweepPeriod, conf.WarningInterval(), rm.Snapshot, sink)
	return rm
}

// StartMonitor begins the periodic sweep (and runs one immediately)
func (rm *RotationManager) StartMonitor() error {
	return rm.monitor.Start()
}

// Stop tears the manager down: the monitor stops first (no ticks after
// this), then a final best-effort persist of the record map.
func (rm *RotationManager) Stop() {
	rm.monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if err := rm.store.Save(ctx, rm.records); err != nil {
		level.Warn(global.Logger).Log("msg", "final rotation state save failed", "err", err)
	}
}

// Rotate initiates a key rotation towards a peer. On transport failure the
// operation aborts with no record update and no persist. On success the
// record under the peer identifier is replaced and the map persisted.
func (rm *RotationManager) Rotate(ctx context.Context, peer string, ownPublicKey string) error {
	rm.mu.RLock()
	existing, found := rm.records[peer]
	rm.mu.RUnlock()

	var rotationNumber int64 = 1
	if found {
		rotationNumber = existing.RotationCount + 1
	}

	packet, payload, err := rm.protocol.InitiateRotation(ctx, peer, ownPublicKey, rotationNumber)
	if err != nil {
		metrics.RotationFailedMetricsCount.Inc()
		return err
	}

	record := types.RotationRecord{
		PublicKey:     peer,
		LastRotation:  packet.Timestamp,
		NextRotation:  packet.Timestamp + rm.rotationInterval.Milliseconds(),
		RotationCount: rotationNumber,
	}
	rm.commit(ctx, peer, record)
	metrics.RotationPacketsSentMetricsCount.Inc()

	rm.sink.Emit(&types.RotationEvent{
		ID:        uuid.NewString(),
		Type:      types.EventSendRotationPacket,
		PublicKey: packet.NewPublicKey,
		Recipient: peer,
		Payload:   payload,
		Created:   time.Now().UnixMilli(),
	})
	return nil
}

// HandleIncoming validates received packet bytes and, if all checks pass,
// replaces the record under the packet's new public key. Atomic-or-nothing:
// the first failing check returns and no state is written.
func (rm *RotationManager) HandleIncoming(ctx context.Context, data []byte, claimedSenderKey string) error {
	packet, err := rm.protocol.ValidateIncoming(data, claimedSenderKey)
	if err != nil {
		metrics.RotationFailedMetricsCount.Inc()
		return err
	}

	record := types.RotationRecord{
		PublicKey:     packet.NewPublicKey,
		LastRotation:  packet.Timestamp,
		NextRotation:  packet.Timestamp + rm.rotationInterval.Milliseconds(),
		RotationCount: packet.RotationNumber,
	}
	rm.commit(ctx, packet.NewPublicKey, record)
	metrics.RotationPacketsReceivedMetricsCount.Inc()
	return nil
}

// commit is the single-key replace + persist transaction. Save errors are
// logged and swallowed; the in-memory map remains authoritative.
func (rm *RotationManager) commit(ctx context.Context, key string, record types.RotationRecord) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.records[key] = record
	if err := rm.store.Save(ctx, rm.records); err != nil {
		level.Warn(global.Logger).Log("msg", "failed to persist rotation state", "err", err)
	}
}

// IsOverdue reports whether the record under publicKey passed its rotation
// deadline. Unknown keys are not overdue.
func (rm *RotationManager) IsOverdue(publicKey string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	record, found := rm.records[publicKey]
	if !found {
		return false
	}
	return record.IsOverdue(time.Now())
}

// DaysUntilRotation returns whole days until the deadline (never negative),
// or nil when no record exists
func (rm *RotationManager) DaysUntilRotation(publicKey string) *int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	record, found := rm.records[publicKey]
	if !found {
		return nil
	}
	days := record.DaysUntilRotation(time.Now())
	return &days
}

// Record returns the record stored under publicKey
func (rm *RotationManager) Record(publicKey string) (types.RotationRecord, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	record, found := rm.records[publicKey]
	return record, found
}

// Records returns all records sorted by public key
func (rm *RotationManager) Records() []types.RotationRecord {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	records := make([]types.RotationRecord, 0, len(rm.records))
	for _, record := range rm.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PublicKey < records[j].PublicKey })
	return records
}

// Snapshot returns a copy of the record map for read-only sweeps
func (rm *RotationManager) Snapshot() map[string]types.RotationRecord {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	snapshot := make(map[string]types.RotationRecord, len(rm.records))
	for key, record := range rm.records {
		snapshot[key] = record
	}
	return snapshot
}

// RotateOverdue re-rotates every currently overdue peer with bounded
// concurrency. Returns how many rotations succeeded and the first error
// encountered (delivery failures for individual peers don't stop the rest).
func (rm *RotationManager) RotateOverdue(ctx context.Context, ownPublicKey string) (int, error) {
	now := time.Now()
	overdue := []string{}
	rm.mu.RLock()
	for publicKey, record := range rm.records {
		if record.IsOverdue(now) {
			overdue = append(overdue, publicKey)
		}
	}
	rm.mu.RUnlock()

	var rotated int64
	var group errgroup.Group
	group.SetLimit(rotateOverdueConcurrency)
	for _, publicKey := range overdue {
		publicKey := publicKey
		group.Go(func() error {
			if err := rm.Rotate(ctx, publicKey, ownPublicKey); err != nil {
				level.Warn(global.Logger).Log("msg", "overdue rotation failed", "peer", publicKey, "err", err)
				return err
			}
			atomic.AddInt64(&rotated, 1)
			return nil
		})
	}
	err := group.Wait()
	return int(atomic.LoadInt64(&rotated)), err
}
