package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// cacheKeyEnv names the environment variable carrying the cache's
// encryption key, raw 32 bytes or base64.
const cacheKeyEnv = "LOOKOUT_CACHE_KEY"

const (
	// keySize is the required AES-256 key length.
	keySize = 32
	// nonceSize is the GCM nonce length.
	nonceSize = 12
	// formatVersion prefixes every encrypted blob so a future format
	// change can be detected before attempting to decrypt.
	formatVersion byte = 0x01
)

// ErrInvalidKey is returned when an encryption key is not exactly
// keySize bytes.
var ErrInvalidKey = errors.New("cache: encryption key must be 32 bytes")

// ErrInvalidCiphertext is returned when encrypted blob bytes are too
// short or carry an unrecognized format version.
var ErrInvalidCiphertext = errors.New("cache: invalid ciphertext")

// encryptBlob seals plaintext with AES-256-GCM under key. Layout:
// version byte || nonce || ciphertext+tag.
func encryptBlob(key, plaintext []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cache: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cache: create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cache: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+nonceSize+len(sealed))
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// decryptBlob is encryptBlob's inverse.
func decryptBlob(key, ciphertext []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	if len(ciphertext) < 1+nonceSize {
		return nil, ErrInvalidCiphertext
	}
	if ciphertext[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version 0x%02x", ErrInvalidCiphertext, ciphertext[0])
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cache: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cache: create GCM: %w", err)
	}

	nonce := ciphertext[1 : 1+nonceSize]
	sealed := ciphertext[1+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: decrypt: %w", err)
	}
	return plaintext, nil
}

// isEncryptedBlob reports whether data looks like encryptBlob's output,
// used by inspect() to render a hint instead of attempting to decrypt
// with the wrong key.
func isEncryptedBlob(data []byte) bool {
	return len(data) >= 1 && data[0] == formatVersion
}

// deriveKey reads LOOKOUT_CACHE_KEY, accepting either a raw 32-byte
// value or its base64 encoding. Returns a nil key (and nil error) when
// the variable is unset, signaling the cache should store blobs
// unencrypted.
func deriveKey() ([]byte, error) {
	raw := os.Getenv(cacheKeyEnv)
	if raw == "" {
		return nil, nil
	}
	key, err := parseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cacheKeyEnv, err)
	}
	return key, nil
}

func parseKey(s string) ([]byte, error) {
	if len(s) == keySize {
		return []byte(s), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(decoded) != keySize {
		return nil, fmt.Errorf("%w: decoded key is %d bytes, expected %d", ErrInvalidKey, len(decoded), keySize)
	}
	return decoded, nil
}

// GenerateKey returns a fresh random 32-byte key, for an `inspect
// --generate-key` style operator workflow.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("cache: generate key: %w", err)
	}
	return key, nil
}

// GenerateKeyBase64 is GenerateKey encoded for pasting into an
// environment variable.
func GenerateKeyBase64() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
