package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptedPrefix(t *testing.T) {
	if EncryptedPrefix != "enc:v1:" {
		t.Errorf("EncryptedPrefix = %q, want enc:v1:", EncryptedPrefix)
	}
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", false},
		{"plain key", "0123456789abcdef", false},
		{"prefix only", "enc:v1:", false},
		{"encrypted", "enc:v1:Zm9v", true},
		{"wrong version", "enc:v2:Zm9v", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEncrypted(tt.value); got != tt.want {
				t.Errorf("IsEncrypted(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestKeyManager_HasKey(t *testing.T) {
	if NewKeyManager("").HasKey() {
		t.Error("empty secret should not produce a key")
	}
	if !NewKeyManager("secret").HasKey() {
		t.Error("non-empty secret should produce a key")
	}
}

func TestKeyManager_Roundtrip(t *testing.T) {
	km := NewKeyManager("correct horse battery staple")

	enc, err := km.Encrypt("radarr-api-key")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasPrefix(enc, EncryptedPrefix) {
		t.Fatalf("encrypted value missing prefix: %q", enc)
	}
	if strings.Contains(enc, "radarr-api-key") {
		t.Fatal("encrypted value leaks plaintext")
	}

	dec, err := km.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if dec != "radarr-api-key" {
		t.Errorf("Decrypt = %q, want radarr-api-key", dec)
	}
}

func TestKeyManager_EncryptIsNonDeterministic(t *testing.T) {
	km := NewKeyManager("k")
	a, _ := km.Encrypt("same")
	b, _ := km.Encrypt("same")
	if a == b {
		t.Error("expected distinct ciphertexts thanks to random nonce")
	}
}

func TestKeyManager_EncryptNoKey(t *testing.T) {
	_, err := NewKeyManager("").Encrypt("x")
	if !errors.Is(err, ErrNoEncryptionKey) {
		t.Errorf("expected ErrNoEncryptionKey, got %v", err)
	}
}

func TestKeyManager_DecryptPlaintextPassthrough(t *testing.T) {
	got, err := NewKeyManager("").Decrypt("plain-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain-key" {
		t.Errorf("Decrypt = %q, want plain-key", got)
	}
}

func TestKeyManager_DecryptNoKey(t *testing.T) {
	enc, err := NewKeyManager("k").Encrypt("x")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	_, err = NewKeyManager("").Decrypt(enc)
	if !errors.Is(err, ErrNoEncryptionKey) {
		t.Errorf("expected ErrNoEncryptionKey, got %v", err)
	}
}

func TestKeyManager_DecryptWrongKey(t *testing.T) {
	enc, _ := NewKeyManager("right").Encrypt("x")
	_, err := NewKeyManager("wrong").Decrypt(enc)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestKeyManager_DecryptInvalidBase64(t *testing.T) {
	_, err := NewKeyManager("k").Decrypt(EncryptedPrefix + "!!!not-base64!!!")
	if err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestKeyManager_DecryptTooShort(t *testing.T) {
	_, err := NewKeyManager("k").Decrypt(EncryptedPrefix + "YWJj") // "abc"
	if !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}
