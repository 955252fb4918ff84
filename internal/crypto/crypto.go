package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

const (
	// EncryptedPrefix is prepended to encrypted values to identify them
	EncryptedPrefix = "enc:v1:"
)

var (
	ErrNoEncryptionKey = errors.New("no encryption key configured")
	ErrDecryptFailed   = errors.New("decryption failed: invalid ciphertext")
)

// KeyManager encrypts and decrypts secrets stored in the hook's configuration,
// such as the Radarr API key.
type KeyManager struct {
	key []byte
}

// NewKeyManager derives a 32-byte AES key from secret using SHA-256.
// An empty secret yields a manager without a key: plaintext passes through.
func NewKeyManager(secret string) *KeyManager {
	if secret == "" {
		return &KeyManager{}
	}
	hash := sha256.Sum256([]byte(secret))
	return &KeyManager{key: hash[:]}
}

// HasKey returns true if an encryption key is configured
func (km *KeyManager) HasKey() bool {
	return km.key != nil
}

// Encrypt encrypts plaintext using AES-GCM
// Returns the encrypted value with the EncryptedPrefix
func (km *KeyManager) Encrypt(plaintext string) (string, error) {
	if !km.HasKey() {
		return "", ErrNoEncryptionKey
	}

	aesGCM, err := km.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
// Values without the EncryptedPrefix are returned as-is so plain keys keep working.
func (km *KeyManager) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return ciphertext, nil
	}

	if !km.HasKey() {
		return "", ErrNoEncryptionKey
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext[len(EncryptedPrefix):])
	if err != nil {
		return "", err
	}

	aesGCM, err := km.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecryptFailed
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

func (km *KeyManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(km.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsEncrypted checks if a value appears to be encrypted
func IsEncrypted(value string) bool {
	return len(value) > len(EncryptedPrefix) && strings.HasPrefix(value, EncryptedPrefix)
}
