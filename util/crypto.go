package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/keywheel/go-keywheel-server/types"
	"golang.org/x/crypto/curve25519"
)

const (
	X25519KeySize = 32 // bytes
)

// PairingDigest derives the rotation packet "signature": a SHA-256 digest
// over oldKey || ":" || newKey.
//
// Known weakness, kept as the wire contract: the digest uses no secret
// material, so it binds the two keys together but does not prove the packet
// came from the holder of oldKey's private key. Strengthening this means
// signing the same fields with the sender's long-term identity key.
func PairingDigest(oldKey string, newKey string) []byte {
	h := sha256.New()
	h.Write([]byte(oldKey))
	h.Write([]byte(":"))
	h.Write([]byte(newKey))
	return h.Sum(nil)
}

// VerifyPacket recomputes the pairing digest from the packet's keys and
// compares it against the carried signature in constant time.
func VerifyPacket(packet *types.RotationPacket) bool {
	expected := PairingDigest(packet.OldPublicKey, packet.NewPublicKey)
	if len(packet.Signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, packet.Signature) == 1
}

// GenerateX25519KeyPair returns a fresh Curve25519 key-agreement pair.
// The private key is clamped per RFC 7748.
func GenerateX25519KeyPair() (privateKey []byte, publicKeyBase64 string, err error) {
	priv := make([]byte, X25519KeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, "", err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, "", err
	}
	return priv, base64.StdEncoding.EncodeToString(pub), nil
}

// Check if a base64 string is an X25519 public key.
func IsX25519PublicKey(b64Key string) bool {
	decoded, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		// Base64 decoding error.
		return false
	}
	return len(decoded) == X25519KeySize
}
