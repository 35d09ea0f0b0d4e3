// Package cryptox holds the vault's cryptographic primitives: password-based
// key derivation (argon2id) and authenticated encryption (AES-256-GCM or
// XChaCha20-Poly1305).
package cryptox

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KdfArgon2id is the only key derivation algorithm the vault accepts.
const KdfArgon2id = "argon2id"

const (
	// KeyLen is the size of every derived key (AES-256 / XChaCha20).
	KeyLen = 32
	// SaltLen is the size of freshly generated salts.
	SaltLen = 32
	// MinSaltLen is the smallest salt DeriveKey will accept.
	MinSaltLen = 16
)

// ErrConfiguration marks unusable KDF parameters. It is fatal at startup and
// never triggers a fallback to weaker parameters.
var ErrConfiguration = errors.New("invalid crypto configuration")

// KdfParams is recorded next to every ciphertext so a later unlock derives the
// same key even after the service defaults change.
type KdfParams struct {
	Algorithm   string `json:"algorithm" dynamodbav:"algorithm"`
	Iterations  uint32 `json:"iterations" dynamodbav:"iterations"`
	MemoryKiB   uint32 `json:"memory_kib" dynamodbav:"memory_kib"`
	Parallelism uint8  `json:"parallelism" dynamodbav:"parallelism"`
	KeyLen      uint32 `json:"key_len" dynamodbav:"key_len"`
}

// DefaultKdfParams returns argon2id with t=3, m=64 MiB, p=4.
func DefaultKdfParams() KdfParams {
	return KdfParams{
		Algorithm:   KdfArgon2id,
		Iterations:  3,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      KeyLen,
	}
}

// Validate returns an error wrapping ErrConfiguration if p cannot be used.
func (p KdfParams) Validate() error {
	switch {
	case p.Algorithm != KdfArgon2id:
		return fmt.Errorf("%w: unsupported kdf %q", ErrConfiguration, p.Algorithm)
	case p.Iterations == 0:
		return fmt.Errorf("%w: kdf iterations must be positive", ErrConfiguration)
	case p.Parallelism == 0:
		return fmt.Errorf("%w: kdf parallelism must be positive", ErrConfiguration)
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("%w: kdf memory must be at least 8 KiB per lane", ErrConfiguration)
	case p.KeyLen != KeyLen:
		return fmt.Errorf("%w: kdf key length must be %d", ErrConfiguration, KeyLen)
	}
	return nil
}

// DeriveKey stretches password with salt under p. The result is KeyLen bytes;
// callers should Wipe it when done.
func DeriveKey(password, salt []byte, p KdfParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) < MinSaltLen {
		return nil, fmt.Errorf("%w: salt shorter than %d bytes", ErrConfiguration, MinSaltLen)
	}
	return argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLen), nil
}

// NewSalt returns SaltLen random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
