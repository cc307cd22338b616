package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/graphlens/pkg/ports"
)

// encryptedPrefix marks content written by the encryption middleware.
const encryptedPrefix = "aesgcm:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key fails, which
	// allows rotating keys without rewriting history.
	FallbackKeys [][]byte
}

// NewEncryptionMiddleware creates a middleware that encrypts content using
// AES-GCM. Filenames, timestamps and digests stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}

	seal := func(content string) (string, error) {
		ciphertext, err := encrypt([]byte(content), config.ActiveKey)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt content: %w", err)
		}
		return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
	}
	open := func(stored string) (string, error) {
		encoded, ok := strings.CutPrefix(stored, encryptedPrefix)
		if !ok {
			// Fail closed: plaintext in an encrypted store is not trusted.
			return "", errors.New("history entry is missing encrypted envelope")
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
		}
		plain, err := decryptWithRotation(ciphertext, config.ActiveKey, config.FallbackKeys)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt content: %w", err)
		}
		return string(plain), nil
	}

	return func(next ports.HistoryStore) ports.HistoryStore {
		return &contentStore{next: next, encode: seal, decode: open}
	}, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
