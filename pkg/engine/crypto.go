package engine

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/smkit/smkit/pkg/stores"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
	saltSize  = 16

	metaKDF      = "kdf"
	metaKeyCheck = "key_check"
	keyCheckText = "smkit-engine"
)

// ErrWrongPassphrase is returned by New when the passphrase does not match
// the one the store was initialized with.
var ErrWrongPassphrase = errors.New("passphrase does not match the store")

// KDFParams are the Argon2id parameters used to derive the storage key.
// They are recorded in the store when it is first initialized.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the parameters used when none are configured.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

type kdfRecord struct {
	KDFParams
	Salt []byte `json:"salt"`
}

// sealer encrypts secret fields with AES-256-GCM. The output is
// nonce || ciphertext || tag; the additional data binds a ciphertext to its row.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes", keySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(plaintext string, ad []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(plaintext), ad), nil
}

func (s *sealer) open(ciphertext, ad []byte) (string, error) {
	if len(ciphertext) < nonceSize+tagSize {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], ad)
	if err != nil {
		return "", errors.New("decryption failed: authentication error")
	}
	return string(plaintext), nil
}

// openSealer derives the storage key from passphrase. On a fresh store it
// records the salt, parameters and a key check value; afterwards it verifies
// the passphrase against the check value.
func openSealer(ctx context.Context, store stores.Store, passphrase string, params KDFParams) (*sealer, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	var rec kdfRecord
	raw, err := store.GetMeta(ctx, metaKDF)
	switch {
	case errors.Is(err, stores.ErrNotFound):
		return initSealer(ctx, store, passphrase, params)
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("invalid kdf record: %w", err)
	}

	s, err := newSealer(deriveKey(passphrase, rec))
	if err != nil {
		return nil, err
	}

	check, err := store.GetMeta(ctx, metaKeyCheck)
	if err != nil {
		return nil, fmt.Errorf("failed to read key check: %w", err)
	}
	if text, err := s.open(check, []byte(metaKeyCheck)); err != nil || text != keyCheckText {
		return nil, ErrWrongPassphrase
	}
	return s, nil
}

func initSealer(ctx context.Context, store stores.Store, passphrase string, params KDFParams) (*sealer, error) {
	if params == (KDFParams{}) {
		params = DefaultKDFParams()
	}
	rec := kdfRecord{KDFParams: params, Salt: make([]byte, saltSize)}
	if _, err := rand.Read(rec.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	s, err := newSealer(deriveKey(passphrase, rec))
	if err != nil {
		return nil, err
	}
	check, err := s.seal(keyCheckText, []byte(metaKeyCheck))
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kdf record: %w", err)
	}
	if err := store.SetMeta(ctx, metaKDF, raw); err != nil {
		return nil, err
	}
	if err := store.SetMeta(ctx, metaKeyCheck, check); err != nil {
		return nil, err
	}
	return s, nil
}

func deriveKey(passphrase string, rec kdfRecord) []byte {
	return argon2.IDKey([]byte(passphrase), rec.Salt, rec.Time, rec.MemoryKiB, rec.Threads, keySize)
}
