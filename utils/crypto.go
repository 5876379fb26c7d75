package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
)

var credentialKey [32]byte
var credentialKeySet bool

// InitCredentialKey loads the 32-byte secretbox key used to seal payment
// provider secrets. CREDENTIAL_ENCRYPTION_KEY must be base64 (std or raw).
func InitCredentialKey() error {
	encoded := os.Getenv("CREDENTIAL_ENCRYPTION_KEY")
	if encoded == "" {
		return errors.New("CREDENTIAL_ENCRYPTION_KEY environment variable not set")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is not valid base64: %w", err)
		}
	}
	if len(raw) != 32 {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(raw))
	}

	copy(credentialKey[:], raw)
	credentialKeySet = true
	return nil
}

// SealSecret encrypts a gateway secret for storage. The random nonce is
// prepended to the box.
func SealSecret(plain string) ([]byte, error) {
	if !credentialKeySet {
		return nil, errors.New("credential encryption key not initialized")
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], []byte(plain), &nonce, &credentialKey), nil
}

// OpenSecret decrypts a secret sealed by SealSecret.
func OpenSecret(box []byte) (string, error) {
	if !credentialKeySet {
		return "", errors.New("credential encryption key not initialized")
	}
	if len(box) < 24 {
		return "", errors.New("sealed secret too short")
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])

	plain, ok := secretbox.Open(nil, box[24:], &nonce, &credentialKey)
	if !ok {
		return "", errors.New("failed to decrypt sealed secret")
	}
	return string(plain), nil
}
