package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// AESGCMEncryption seals platform access tokens with a per-influencer key
// derived from the service seed. Payloads are base64(nonce || ciphertext).
type AESGCMEncryption struct {
	seed string
}

func NewAESGCMEncryption(seed string) *AESGCMEncryption {
	return &AESGCMEncryption{seed: seed}
}

func (e *AESGCMEncryption) Encrypt(subjectID string, value string) ([]byte, error) {
	gcm, err := e.aead(subjectID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(value), []byte(subjectID))
	return []byte(base64.StdEncoding.EncodeToString(sealed)), nil
}

func (e *AESGCMEncryption) Decrypt(subjectID string, payload []byte) (string, error) {
	gcm, err := e.aead(subjectID)
	if err != nil {
		return "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if len(decoded) < gcm.NonceSize() {
		return "", errors.New("payload shorter than nonce")
	}
	nonce, cipherText := decoded[:gcm.NonceSize()], decoded[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, cipherText, []byte(subjectID))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (e *AESGCMEncryption) aead(subjectID string) (cipher.AEAD, error) {
	key, err := deriveKey(subjectID, e.seed)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func deriveKey(subjectID, seed string) ([]byte, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(seed), nil, []byte("instagram-token:"+subjectID))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
