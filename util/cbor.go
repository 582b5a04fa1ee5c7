package util

import (
	"github.com/fxamacker/cbor/v2"
)

// deterministic encoding so a packet re-encodes byte-identically
var cborEncMode cbor.EncMode
var cborDecMode cbor.DecMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
	cborDecMode = dm
}

// CborEncode encodes a value into deterministic CBOR
func CborEncode(value interface{}) ([]byte, error) {
	return cborEncMode.Marshal(value)
}

// CborDecode decodes CBOR bytes into the given pointer
func CborDecode(data []byte, value interface{}) error {
	return cborDecMode.Unmarshal(data, value)
}
