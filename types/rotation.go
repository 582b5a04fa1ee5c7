package types

import "time"

// RotationRecord is the per-peer rotation bookkeeping entry, keyed in the
// record map by that peer's current public key (base64 X25519). A successful
// rotation writes a new record under the new key; old-lineage records are
// retained indefinitely.
type RotationRecord struct {
	PublicKey     string `json:"publicKey"`
	LastRotation  int64  `json:"lastRotation"`  // epoch millis UTC of the last successful rotation
	NextRotation  int64  `json:"nextRotation"`  // lastRotation + rotation interval
	RotationCount int64  `json:"rotationCount"` // +1 per completed rotation for this lineage
}

// IsOverdue reports whether the key rotation deadline has passed
func (r *RotationRecord) IsOverdue(now time.Time) bool {
	return now.UnixMilli() >= r.NextRotation
}

// NeedsWarning reports whether the deadline is still ahead but within the
// warning lead time. Mutually exclusive with IsOverdue.
func (r *RotationRecord) NeedsWarning(now time.Time, warningInterval time.Duration) bool {
	until := r.NextRotation - now.UnixMilli()
	return until > 0 && until < warningInterval.Milliseconds()
}

// DaysUntilRotation returns max(0, floor((nextRotation - now) / 1 day))
func (r *RotationRecord) DaysUntilRotation(now time.Time) int {
	until := r.NextRotation - now.UnixMilli()
	if until <= 0 {
		return 0
	}
	return int(until / (24 * time.Hour).Milliseconds())
}

// RotationPacket is the two-party rotation handshake message. It is CBOR
// encoded on the wire and discarded after producing a RotationRecord on the
// receiver; it is never persisted.
type RotationPacket struct {
	OldPublicKey   string `json:"oldPublicKey" cbor:"oldPublicKey" validate:"required"`
	NewPublicKey   string `json:"newPublicKey" cbor:"newPublicKey" validate:"required"`
	Timestamp      int64  `json:"timestamp" cbor:"timestamp" validate:"required"`
	Signature      []byte `json:"signature" cbor:"signature" validate:"required"` // pairing digest over old+new key (see util.PairingDigest)
	RotationNumber int64  `json:"rotationNumber" cbor:"rotationNumber" validate:"gte=0"`
}
