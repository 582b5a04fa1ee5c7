package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/repository"
	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/util"
	"github.com/keywheel/go-keywheel-server/vault"
	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	mu         sync.Mutex
	fail       bool
	recipients []string
	payloads   [][]byte
}

func (ft *fakeTransport) Deliver(ctx context.Context, recipient string, payload []byte) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.fail {
		return fmt.Errorf("%w: connection refused", types.ErrTransport)
	}
	ft.recipients = append(ft.recipients, recipient)
	ft.payloads = append(ft.payloads, payload)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []*types.RotationEvent
}

func (rs *recordingSink) Emit(event *types.RotationEvent) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, event)
}

func (rs *recordingSink) byType(eventType string) []*types.RotationEvent {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	matched := []*types.RotationEvent{}
	for _, event := range rs.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (rs *recordingSink) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.events)
}

var testKeywheelConf = global.KeywheelConfig{
	RotationIntervalDays: 7,
	WarningHours:         24,
	SweepPeriod:          "1h",
}

func newTestManager(t *testing.T, transport Transport) (*RotationManager, *RotationStore, *recordingSink) {
	t.Helper()
	repo, err := repository.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := NewRotationStore(repo)
	protocol := NewRotationProtocol(vault.NewMemoryVault(), transport)
	sink := &recordingSink{}
	env := types.NewEnvironment(nil)
	return NewRotationManager(env, store, protocol, sink, testKeywheelConf), store, sink
}

func TestRotateFirstTime(t *testing.T) {
	transport := &fakeTransport{}
	manager, store, sink := newTestManager(t, transport)
	ctx := context.Background()

	before := time.Now().UnixMilli()
	err := manager.Rotate(ctx, "peerP", "ownKey1")
	if err != nil {
		t.Fatal(err)
	}

	record, found := manager.Record("peerP")
	if !found {
		t.Fatal("no record for peerP")
	}
	assert.Equal(t, int64(1), record.RotationCount)
	assert.GreaterOrEqual(t, record.LastRotation, before)
	assert.Equal(t, record.LastRotation+(7*24*time.Hour).Milliseconds(), record.NextRotation)

	// delivered exactly once to the peer
	assert.Equal(t, []string{"peerP"}, transport.recipients)

	// persisted state matches memory
	loaded := store.Load(ctx)
	assert.Equal(t, record, loaded["peerP"])

	// hand-off recorded after successful delivery
	sent := sink.byType(types.EventSendRotationPacket)
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "peerP", sent[0].Recipient)
		assert.Equal(t, transport.payloads[0], sent[0].Payload)
	}
}

func TestRotationCountIncrementsPerRotation(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := manager.Rotate(ctx, "peerP", "ownKey1"); err != nil {
			t.Fatal(err)
		}
		record, _ := manager.Record("peerP")
		assert.Equal(t, int64(i), record.RotationCount)
	}
}

func TestRotateTransportFailureLeavesStateUntouched(t *testing.T) {
	transport := &fakeTransport{fail: true}
	manager, store, sink := newTestManager(t, transport)
	ctx := context.Background()

	err := manager.Rotate(ctx, "peerP", "ownKey1")
	assert.ErrorIs(t, err, types.ErrTransport)

	_, found := manager.Record("peerP")
	assert.False(t, found)
	assert.Empty(t, store.Load(ctx))
	assert.Equal(t, 0, sink.count())
}

func buildIncomingPacket(t *testing.T, oldKey, newKey string, rotationNumber int64) []byte {
	t.Helper()
	packet := &types.RotationPacket{
		OldPublicKey:   oldKey,
		NewPublicKey:   newKey,
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest(oldKey, newKey),
		RotationNumber: rotationNumber,
	}
	data, err := util.CborEncode(packet)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandleIncoming(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	data := buildIncomingPacket(t, "senderOldKey", "senderNewKey", 5)
	err := manager.HandleIncoming(ctx, data, "senderOldKey")
	if err != nil {
		t.Fatal(err)
	}

	// record lives under the NEW public key
	record, found := manager.Record("senderNewKey")
	if !found {
		t.Fatal("no record under the new public key")
	}
	assert.Equal(t, int64(5), record.RotationCount)
	assert.Equal(t, record.LastRotation+(7*24*time.Hour).Milliseconds(), record.NextRotation)

	loaded := store.Load(ctx)
	assert.Equal(t, record, loaded["senderNewKey"])
}

func TestHandleIncomingIdentityMismatch(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	// valid digest, wrong claimed sender
	data := buildIncomingPacket(t, "senderOldKey", "senderNewKey", 1)
	err := manager.HandleIncoming(ctx, data, "someoneElse")
	assert.ErrorIs(t, err, types.ErrIdentityMismatch)

	_, found := manager.Record("senderNewKey")
	assert.False(t, found)
	assert.Empty(t, store.Load(ctx))
}

func TestHandleIncomingTamperedPacket(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	packet := &types.RotationPacket{
		OldPublicKey:   "senderOldKey",
		NewPublicKey:   "senderNewKey",
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest("senderOldKey", "senderNewKey"),
		RotationNumber: 1,
	}
	// bit flip after signing
	packet.NewPublicKey = "senderNewKeX"
	data, err := util.CborEncode(packet)
	if err != nil {
		t.Fatal(err)
	}

	hErr := manager.HandleIncoming(ctx, data, "senderOldKey")
	assert.ErrorIs(t, hErr, types.ErrPacketSignature)
	_, found := manager.Record("senderNewKeX")
	assert.False(t, found)
}

func TestHandleIncomingMalformedBytes(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	err := manager.HandleIncoming(context.Background(), []byte("garbage"), "senderOldKey")
	assert.ErrorIs(t, err, types.ErrPacketDecode)
}

func TestHandleIncomingCountFollowsPacket(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	// lineage advances by exactly one per handshake
	data := buildIncomingPacket(t, "keyGen1", "keyGen2", 1)
	if err := manager.HandleIncoming(ctx, data, "keyGen1"); err != nil {
		t.Fatal(err)
	}
	data = buildIncomingPacket(t, "keyGen2", "keyGen3", 2)
	if err := manager.HandleIncoming(ctx, data, "keyGen2"); err != nil {
		t.Fatal(err)
	}

	record, _ := manager.Record("keyGen3")
	assert.Equal(t, int64(2), record.RotationCount)
	// old lineage records are retained
	_, stillThere := manager.Record("keyGen2")
	assert.True(t, stillThere)
}

func TestStatusQueries(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	assert.False(t, manager.IsOverdue("unknownKey"))
	assert.Nil(t, manager.DaysUntilRotation("unknownKey"))

	if err := manager.Rotate(ctx, "peerP", "ownKey1"); err != nil {
		t.Fatal(err)
	}
	assert.False(t, manager.IsOverdue("peerP"))
	days := manager.DaysUntilRotation("peerP")
	if assert.NotNil(t, days) {
		assert.Equal(t, 6, *days) // just under 7 days rounds down
	}
}

func TestRotateOverdue(t *testing.T) {
	transport := &fakeTransport{}
	manager, _, _ := newTestManager(t, transport)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	manager.commit(ctx, "overdueA", types.RotationRecord{
		PublicKey:     "overdueA",
		LastRotation:  now - (8 * 24 * time.Hour).Milliseconds(),
		NextRotation:  now - (24 * time.Hour).Milliseconds(),
		RotationCount: 2,
	})
	manager.commit(ctx, "freshB", types.RotationRecord{
		PublicKey:     "freshB",
		LastRotation:  now,
		NextRotation:  now + (7 * 24 * time.Hour).Milliseconds(),
		RotationCount: 1,
	})

	rotated, err := manager.RotateOverdue(ctx, "ownKey1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, rotated)
	assert.Equal(t, []string{"overdueA"}, transport.recipients)

	record, _ := manager.Record("overdueA")
	assert.Equal(t, int64(3), record.RotationCount)
	assert.False(t, manager.IsOverdue("overdueA"))
}

func TestRecordsSnapshot(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeTransport{})
	ctx := context.Background()

	if err := manager.Rotate(ctx, "peerB", "ownKey1"); err != nil {
		t.Fatal(err)
	}
	if err := manager.Rotate(ctx, "peerA", "ownKey1"); err != nil {
		t.Fatal(err)
	}

	records := manager.Records()
	if assert.Len(t, records, 2) {
		assert.Equal(t, "peerA", records[0].PublicKey)
		assert.Equal(t, "peerB", records[1].PublicKey)
	}

	// snapshot is a copy, mutating it doesn't touch the manager
	snapshot := manager.Snapshot()
	delete(snapshot, "peerA")
	_, found := manager.Record("peerA")
	assert.True(t, found)
}
