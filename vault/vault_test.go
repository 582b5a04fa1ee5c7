package vault

import (
	"testing"

	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/util"
	"github.com/tj/assert"
)

func TestMemoryVaultGeneratesDistinctKeys(t *testing.T) {
	v := NewMemoryVault()

	first, err := v.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	assert.NotEqual(t, first, second)
	assert.True(t, util.IsX25519PublicKey(first))
	assert.True(t, util.IsX25519PublicKey(second))
}

func TestMemoryVaultRetainsPrivateKeys(t *testing.T) {
	v := NewMemoryVault()

	pub, err := v.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	priv, err := v.PrivateKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, util.X25519KeySize, len(priv))

	_, err = v.PrivateKey("neverGenerated")
	assert.Equal(t, types.ErrNotFound, err)
}
