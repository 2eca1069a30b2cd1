// Package nanoid generates short, URL-safe random identifiers.
//
// No nanoid implementation appears anywhere in the retrieval pack's
// dependency graph, so this is a small hand-rolled generator rather than
// an imported library — the only stdlib-only package in the core, and
// narrowly so: it wraps crypto/rand and a fixed alphabet, the same shape
// every nanoid port uses.
package nanoid

import (
	"crypto/rand"
	"fmt"
)

// alphabet matches the default nanoid alphabet: URL-safe, no padding.
const alphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GTcfjkqvwyzrict"

// Generate returns a random identifier of the requested length.
func Generate(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("nanoid: size must be positive, got %d", size)
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("nanoid: read random bytes: %w", err)
	}

	id := make([]byte, size)
	for i, b := range raw {
		id[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(id), nil
}

// MustGenerate panics if random generation fails. crypto/rand only fails
// when the OS entropy source is broken, a condition callers at startup
// cannot meaningfully recover from.
func MustGenerate(size int) string {
	id, err := Generate(size)
	if err != nil {
		panic(err)
	}
	return id
}

// Identity returns a 21-char nanoid, the voice client identity length (§3).
func Identity() string { return MustGenerate(21) }

// Token returns a 64-char nanoid, the voice client token length (§3).
func Token() string { return MustGenerate(64) }
