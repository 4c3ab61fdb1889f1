package cachemanager

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Key is the hex blake3 digest used to address a cached result.
type Key string

// KeyOf digests the given parts into a Key. Parts are length-prefixed so
// that ("ab", "c") and ("a", "bc") produce different keys.
func KeyOf(parts ...[]byte) Key {
	h := blake3.New()
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		_, _ = h.Write(size[:])
		_, _ = h.Write(p)
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// Short returns the first 12 hex digits, for log lines.
func (k Key) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}
