package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MinTokenBytes is the smallest entropy accepted for bearer-style tokens (128 bits).
const MinTokenBytes = 16

// RandomHexToken returns n bytes from crypto/rand, hex encoded.
func RandomHexToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("token must carry at least %d bytes, got %d", MinTokenBytes, n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
