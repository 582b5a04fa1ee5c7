package api

import (
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/util"
	"github.com/stretchr/testify/assert"
)

func encodePacket(t *testing.T, packet *types.RotationPacket) string {
	t.Helper()
	data, err := util.CborEncode(packet)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestReceiveRotationEndpoint(t *testing.T) {
	router, manager := newTestRouter(t, &stubTransport{})

	packet := &types.RotationPacket{
		OldPublicKey:   "senderOldKey",
		NewPublicKey:   "senderNewKey",
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest("senderOldKey", "senderNewKey"),
		RotationNumber: 3,
	}
	w := postJSON(router, "/api/v1/ktp/rotation", types.KTPEnvelope{
		SenderKey:    "senderOldKey",
		PacketBase64: encodePacket(t, packet),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	record, found := manager.Record("senderNewKey")
	assert.True(t, found)
	assert.Equal(t, int64(3), record.RotationCount)
}

func TestReceiveRotationIdentityMismatch(t *testing.T) {
	router, manager := newTestRouter(t, &stubTransport{})

	packet := &types.RotationPacket{
		OldPublicKey:   "senderOldKey",
		NewPublicKey:   "senderNewKey",
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest("senderOldKey", "senderNewKey"),
		RotationNumber: 1,
	}
	w := postJSON(router, "/api/v1/ktp/rotation", types.KTPEnvelope{
		SenderKey:    "impostorKey",
		PacketBase64: encodePacket(t, packet),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, found := manager.Record("senderNewKey")
	assert.False(t, found)
}

func TestReceiveRotationTamperedPacket(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{})

	packet := &types.RotationPacket{
		OldPublicKey:   "senderOldKey",
		NewPublicKey:   "senderNewKey",
		Timestamp:      time.Now().UnixMilli(),
		Signature:      util.PairingDigest("senderOldKey", "tamperedKey"),
		RotationNumber: 1,
	}
	w := postJSON(router, "/api/v1/ktp/rotation", types.KTPEnvelope{
		SenderKey:    "senderOldKey",
		PacketBase64: encodePacket(t, packet),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiveRotationMalformedPayload(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{})

	// not base64
	w := postJSON(router, "/api/v1/ktp/rotation", types.KTPEnvelope{
		SenderKey:    "senderOldKey",
		PacketBase64: "!!not-base64!!",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// base64, but not a packet
	w = postJSON(router, "/api/v1/ktp/rotation", types.KTPEnvelope{
		SenderKey:    "senderOldKey",
		PacketBase64: base64.StdEncoding.EncodeToString([]byte("garbage")),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing sender key entirely
	w = postJSON(router, "/api/v1/ktp/rotation", map[string]string{"packetBase64": "AAAA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
