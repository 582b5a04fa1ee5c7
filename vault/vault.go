// Package vault holds the key-agreement keypairs the rotation protocol
// generates. The rotation core only ever sees public keys; private keys stay
// inside the vault for the messaging layer to use.
package vault

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/util"
)

// KeypairSource is the "generate keypair" capability consumed by the
// rotation protocol
type KeypairSource interface {
	// GenerateKeypair creates a fresh X25519 pair, retains the private key
	// and returns the base64 public key
	GenerateKeypair() (string, error)
	// PrivateKey returns the retained private key for a public key
	PrivateKey(publicKeyBase64 string) ([]byte, error)
}

// KeyringVault stores private keys in the OS keyring (libsecret/keychain)
type KeyringVault struct {
	ring keyring.Keyring
}

func NewKeyringVault(serviceName string) (*KeyringVault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &KeyringVault{ring: ring}, nil
}

func (v *KeyringVault) GenerateKeypair() (string, error) {
	priv, pub, err := util.GenerateX25519KeyPair()
	if err != nil {
		return "", err
	}
	setErr := v.ring.Set(keyring.Item{
		Key:  keyItemName(pub),
		Data: priv,
	})
	if setErr != nil {
		return "", fmt.Errorf("failed to store key in keyring: %w", setErr)
	}
	return pub, nil
}

func (v *KeyringVault) PrivateKey(publicKeyBase64 string) ([]byte, error) {
	item, err := v.ring.Get(keyItemName(publicKeyBase64))
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key from keyring: %w", err)
	}
	return item.Data, nil
}

func keyItemName(publicKeyBase64 string) string {
	// keyring backends dislike '/' in item names, so re-encode
	return "x25519:" + base64.RawURLEncoding.EncodeToString([]byte(publicKeyBase64))
}

// MemoryVault keeps keys in process memory; for tests and the CLI
type MemoryVault struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{keys: map[string][]byte{}}
}

func (v *MemoryVault) GenerateKeypair() (string, error) {
	priv, pub, err := util.GenerateX25519KeyPair()
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[pub] = priv
	return pub, nil
}

func (v *MemoryVault) PrivateKey(publicKeyBase64 string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	priv, ok := v.keys[publicKeyBase64]
	if !ok {
		return nil, types.ErrNotFound
	}
	return priv, nil
}
