package sealing

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medlemine/ashport/pkg/crypto"
)

const defaultSaltLength = 16

// IdentityPayload is the sensitive triple sealed when a verification is
// approved. The JSON encoding of this struct is what gets encrypted, so an
// approve followed by a reveal round-trips byte-identically.
type IdentityPayload struct {
	FullName    string `json:"full_name"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phone_number"`
}

// Sealer encrypts and decrypts identity payloads with a key derived from the
// process-wide master secret.
type Sealer struct {
	key    []byte
	salt   []byte
	params crypto.Argon2Parameters
}

type sealerConfig struct {
	params crypto.Argon2Parameters
	salt   []byte
}

// Option configures the sealer.
type Option func(*sealerConfig)

// WithSalt overrides the salt used for Argon2 key derivation.
func WithSalt(salt []byte) Option {
	cp := make([]byte, len(salt))
	copy(cp, salt)
	return func(cfg *sealerConfig) {
		cfg.salt = cp
	}
}

// WithArgon2Parameters overrides the Argon2 parameters used during key derivation.
func WithArgon2Parameters(params crypto.Argon2Parameters) Option {
	return func(cfg *sealerConfig) {
		cfg.params = params
	}
}

// New derives an AES key from the provided master key using Argon2id.
func New(masterKey []byte, opts ...Option) (*Sealer, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("sealing: master key is required")
	}

	cfg := sealerConfig{
		params: crypto.DefaultArgon2Params(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if len(cfg.salt) == 0 {
		cfg.salt = deriveSalt(masterKey)
	} else if len(cfg.salt) < defaultSaltLength {
		return nil, fmt.Errorf("sealing: salt must be at least %d bytes (got %d)", defaultSaltLength, len(cfg.salt))
	}

	derived, err := crypto.DeriveKeyArgon2id(masterKey, cfg.salt, cfg.params)
	if err != nil {
		return nil, fmt.Errorf("sealing: derive key: %w", err)
	}

	return &Sealer{
		key:    derived,
		salt:   append([]byte(nil), cfg.salt...),
		params: cfg.params,
	}, nil
}

// SealIdentity encrypts the payload and returns the base64 ciphertext.
func (s *Sealer) SealIdentity(payload IdentityPayload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sealing: marshal payload: %w", err)
	}
	return s.Seal(plaintext)
}

// OpenIdentity decrypts a ciphertext produced by SealIdentity.
func (s *Sealer) OpenIdentity(ciphertext string) (IdentityPayload, error) {
	var payload IdentityPayload

	plaintext, err := s.Open(ciphertext)
	if err != nil {
		return payload, err
	}

	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return payload, fmt.Errorf("sealing: unmarshal payload: %w", err)
	}
	return payload, nil
}

// Seal encrypts raw bytes using the derived AES-256-GCM key.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	if len(s.key) == 0 {
		return "", errors.New("sealing: key is not initialised")
	}
	return crypto.Encrypt(plaintext, s.key)
}

// Open decrypts an encrypted payload using the derived AES-256-GCM key.
func (s *Sealer) Open(ciphertext string) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, errors.New("sealing: key is not initialised")
	}
	return crypto.Decrypt(ciphertext, s.key)
}

// Key returns a copy of the derived key bytes.
func (s *Sealer) Key() []byte {
	return append([]byte(nil), s.key...)
}

func deriveSalt(masterKey []byte) []byte {
	sum := sha256.Sum256(masterKey)
	return sum[:defaultSaltLength]
}
