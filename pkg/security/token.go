package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// apiTokenBytes is the amount of random entropy behind a generated API
// token, hex-encoded to twice this length.
const apiTokenBytes = 32

// GenerateAPIToken returns a fresh, high-entropy opaque token suitable for
// authenticating a single cluster's registrar endpoints. Unlike a join
// token, it has no expiry: it lives as long as the cluster does and is
// rotated only by recreating the cluster.
func GenerateAPIToken() (string, error) {
	buf := make([]byte, apiTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
