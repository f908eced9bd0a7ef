package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters per the 2017 recommended interactive profile.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1

	sealKeySize  = 32 // AES-256
	sealSaltSize = 16
)

// SealBox encrypts small secrets (tokens, profile fields) at rest using
// AES-256-GCM with a key derived from a passphrase via scrypt. The salt is
// generated once per box and must be persisted alongside the ciphertexts.
type SealBox struct {
	aead cipher.AEAD
	salt []byte
}

// NewSealBox derives an encryption key from passphrase and salt. If salt is
// nil a fresh random salt is generated; retrieve it with Salt() and store it
// next to the sealed data.
func NewSealBox(passphrase string, salt []byte) (*SealBox, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("cryptox: empty passphrase")
	}

	if salt == nil {
		salt = make([]byte, sealSaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, sealKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &SealBox{aead: aead, salt: salt}, nil
}

// Salt returns the salt used for key derivation.
func (b *SealBox) Salt() []byte { return b.salt }

// Seal encrypts plaintext. The output format is
// [nonce][ciphertext][auth tag], with a random nonce per call.
func (b *SealBox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal and verifies its authentication tag.
func (b *SealBox) Open(sealed []byte) ([]byte, error) {
	nonceSize := b.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
