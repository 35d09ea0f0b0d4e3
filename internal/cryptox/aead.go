package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Supported AEAD constructions.
const (
	CipherAES256GCM         = "aes-256-gcm"
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"
)

// ErrIntegrity is the single failure mode of Open: wrong key, tampered
// ciphertext, wrong nonce or wrong associated data all look the same.
var ErrIntegrity = errors.New("integrity check failed")

// ValidateCipher reports whether alg names a supported AEAD.
func ValidateCipher(alg string) error {
	switch alg {
	case CipherAES256GCM, CipherXChaCha20Poly1305:
		return nil
	default:
		return fmt.Errorf("%w: unsupported cipher %q", ErrConfiguration, alg)
	}
}

func newAEAD(alg string, key []byte) (cipher.AEAD, error) {
	switch alg {
	case CipherAES256GCM:
		if len(key) != KeyLen {
			return nil, fmt.Errorf("%w: aes-256-gcm needs a %d byte key", ErrConfiguration, KeyLen)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, ValidateCipher(alg)
	}
}

// NonceSize returns the nonce length required by alg.
func NonceSize(alg string) (int, error) {
	switch alg {
	case CipherAES256GCM:
		return 12, nil
	case CipherXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	default:
		return 0, ValidateCipher(alg)
	}
}

// NewNonce returns a random nonce sized for alg. Every key in the vault is
// derived from a fresh salt, so random nonces never repeat under one key.
func NewNonce(alg string) ([]byte, error) {
	n, err := NonceSize(alg)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, n)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext and appends the authentication tag.
func Seal(alg string, key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrConfiguration, aead.NonceSize())
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open verifies the tag and decrypts. Any verification failure, including a
// malformed nonce read back from storage, is reported as ErrIntegrity.
func Open(alg string, key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrIntegrity
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
