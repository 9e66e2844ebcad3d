package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// RefreshSecretPrefix is the fixed marker carried by every refresh
// secret. It lets clients and log scrubbers recognize the credential
// class without the server leaking anything about validity.
const RefreshSecretPrefix = "rts_"

const refreshSecretEntropyBytes = 32

// NewRefreshSecret returns an opaque, high-entropy refresh secret.
// The secret is the sole proof of possession for the refresh capability;
// it is never embedded in the signed access credential.
func NewRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh secret entropy: %w", err)
	}
	return RefreshSecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HasRefreshPrefix reports whether s looks like a refresh secret.
// This is a shape check only, not a validity check.
func HasRefreshPrefix(s string) bool {
	return strings.HasPrefix(s, RefreshSecretPrefix) && len(s) > len(RefreshSecretPrefix)
}
