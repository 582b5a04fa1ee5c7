package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/util"
	"github.com/keywheel/go-keywheel-server/vault"
)

// RotationProtocol builds, delivers and validates rotation packets. The
// record map itself is owned by the manager; the protocol only handles the
// handshake mechanics.
type RotationProtocol struct {
	keypairSource vault.KeypairSource
	transport     Transport
	validate      *validator.Validate
}

func NewRotationProtocol(keypairSource vault.KeypairSource, transport Transport) *RotationProtocol {
	return &RotationProtocol{
		keypairSource: keypairSource,
		transport:     transport,
		validate:      validator.New(),
	}
}

// InitiateRotation generates a fresh key-agreement keypair, builds the
// signed packet advancing the lineage to rotationNumber and hands it to the
// transport. On transport failure the whole operation aborts: the caller
// must not update any state. Returns the packet and the delivered payload.
func (rp *RotationProtocol) InitiateRotation(ctx context.Context, peer string, ownPublicKey string, rotationNumber int64) (*types.RotationPacket, []byte, error) {
	newPublicKey, kErr := rp.keypairSource.GenerateKeypair()
	if kErr != nil {
		return nil, nil, fmt.Errorf("failed to generate keypair: %w", kErr)
	}

	packet := &types.RotationPacket{
		OldPublicKey:   ownPublicKey,
		NewPublicKey:   newPublicKey,
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest(ownPublicKey, newPublicKey),
		RotationNumber: rotationNumber,
	}

	payload, pErr := EncodePacketEnvelope(packet, ownPublicKey)
	if pErr != nil {
		return nil, nil, pErr
	}

	if dErr := rp.transport.Deliver(ctx, peer, payload); dErr != nil {
		return nil, nil, dErr
	}
	return packet, payload, nil
}

// ValidateIncoming runs the ordered, short-circuiting checks on received
// packet bytes: decode, digest, sender identity. No state is touched here.
func (rp *RotationProtocol) ValidateIncoming(data []byte, claimedSenderKey string) (*types.RotationPacket, error) {
	var packet types.RotationPacket
	if dErr := util.CborDecode(data, &packet); dErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPacketDecode, dErr.Error())
	}
	if vErr := rp.validate.Struct(&packet); vErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrPacketDecode, vErr.Error())
	}
	if !util.VerifyPacket(&packet) {
		return nil, types.ErrPacketSignature
	}
	if packet.OldPublicKey != claimedSenderKey {
		return nil, types.ErrIdentityMismatch
	}
	return &packet, nil
}

// EncodePacketEnvelope CBOR-encodes the packet and wraps it in the JSON KTP
// envelope carrying the claimed sender key.
func EncodePacketEnvelope(packet *types.RotationPacket, senderKey string) ([]byte, error) {
	packetBytes, cErr := util.CborEncode(packet)
	if cErr != nil {
		return nil, fmt.Errorf("failed to cbor encode packet: %w", cErr)
	}
	envelope := types.KTPEnvelope{
		SenderKey:    senderKey,
		PacketBase64: base64.StdEncoding.EncodeToString(packetBytes),
	}
	payload, mErr := json.Marshal(envelope)
	if mErr != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", mErr)
	}
	return payload, nil
}
