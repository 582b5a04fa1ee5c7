package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log/level"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/repository"
	"github.com/keywheel/go-keywheel-server/types"
)

// single well-known blob key holding the whole record map
const RotationStateKey = "rotation_state"

// checksum envelope around the serialized record map; a torn or corrupted
// blob fails the checksum and takes the soft-fail path on load
type rotationStateEnvelope struct {
	Checksum uint64          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// RotationStore persists the full record map as one blob. Persistence is
// best-effort: in-memory state stays authoritative for the process lifetime.
type RotationStore struct {
	repo repository.BlobRepository
}

func NewRotationStore(repo repository.BlobRepository) *RotationStore {
	return &RotationStore{repo: repo}
}

// Load reads the persisted record map. Fails soft: a missing blob, a
// checksum mismatch or a decode failure all yield an empty map.
func (rs *RotationStore) Load(ctx context.Context) map[string]types.RotationRecord {
	records := map[string]types.RotationRecord{}

	blob, err := rs.repo.Get(ctx, RotationStateKey)
	if err != nil {
		if err != types.ErrNotFound {
			level.Warn(global.Logger).Log("msg", "failed to load rotation state, starting empty", "err", err)
		}
		return records
	}

	var envelope rotationStateEnvelope
	if uErr := json.Unmarshal(blob, &envelope); uErr != nil {
		level.Warn(global.Logger).Log("msg", "rotation state blob unreadable, starting empty", "err", uErr)
		return records
	}
	if xxhash.Sum64(envelope.Payload) != envelope.Checksum {
		level.Warn(global.Logger).Log("msg", "rotation state checksum mismatch, starting empty")
		return records
	}
	if uErr := json.Unmarshal(envelope.Payload, &records); uErr != nil {
		level.Warn(global.Logger).Log("msg", "rotation state payload unreadable, starting empty", "err", uErr)
		return map[string]types.RotationRecord{}
	}
	return records
}

// Save replaces the persisted blob with the full map. The caller treats the
// returned error as non-fatal.
func (rs *RotationStore) Save(ctx context.Context, records map[string]types.RotationRecord) error {
	payload, mErr := json.Marshal(records)
	if mErr != nil {
		return fmt.Errorf("%w: %s", types.ErrPersistence, mErr.Error())
	}
	envelope := rotationStateEnvelope{
		Checksum: xxhash.Sum64(payload),
		Payload:  payload,
	}
	blob, mErr := json.Marshal(envelope)
	if mErr != nil {
		return fmt.Errorf("%w: %s", types.ErrPersistence, mErr.Error())
	}
	if pErr := rs.repo.Put(ctx, RotationStateKey, blob); pErr != nil {
		return fmt.Errorf("%w: %s", types.ErrPersistence, pErr.Error())
	}
	return nil
}
