package types

// trigger an outgoing rotation towards a peer
type InputRotate struct {
	Peer         string `json:"peer" validate:"required"`         // recipient identifier (peer's current public key)
	OwnPublicKey string `json:"ownPublicKey" validate:"required"` // our current key the peer trusts
}

// batch remediation of overdue records
type InputRotateOverdue struct {
	OwnPublicKey string `json:"ownPublicKey" validate:"required"`
}

// KTPEnvelope is the HTTP envelope a peer server posts to deliver a rotation
// packet (Keywheel Transfer Protocol). The packet itself stays opaque CBOR;
// SenderKey is the claimed sender identity checked against the packet's old key.
type KTPEnvelope struct {
	SenderKey    string `json:"senderKey" validate:"required"`
	PacketBase64 string `json:"packetBase64" validate:"required"`
}
