package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes gives 128 bits of entropy; the hex form is 32 characters, which
// keeps the callback payload inside Telegram's 64-byte callback data limit.
const tokenBytes = 16

// newLoginToken generates an unpredictable login correlation token.
func newLoginToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate login token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
