package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrNoKeyMatched is returned by KeyRing.Decrypt when none of the
// configured keys can open the ciphertext.
var ErrNoKeyMatched = errors.New("security: no key in ring could decrypt data")

// KeyRing encrypts secrets at rest with a rotating set of AES-256-GCM keys.
//
// Encrypt always seals with keys[0], the "active" key. Decrypt tries every
// key in order, oldest behavior preserved included, so a row encrypted
// under a retired key still decrypts as long as that key hasn't been
// dropped from the ring. Operators rotate by prepending a freshly generated
// key and, once every row has been rewritten, dropping the old one.
type KeyRing struct {
	keys [][]byte
}

// NewKeyRing builds a KeyRing from an ordered list of 32-byte AES-256 keys.
// keys[0] is the active key used for all new encryption.
func NewKeyRing(keys [][]byte) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("security: key ring must have at least one key")
	}
	for i, k := range keys {
		if len(k) != 32 {
			return nil, fmt.Errorf("security: key %d must be 32 bytes for AES-256, got %d", i, len(k))
		}
	}
	cp := make([][]byte, len(keys))
	copy(cp, keys)
	return &KeyRing{keys: cp}, nil
}

// NewKeyRingFromPassphrase builds a single-key KeyRing by deriving a
// 32-byte key from passphrase with SHA-256. Intended for small deployments
// that configure a single static secret rather than generating raw key
// material.
func NewKeyRingFromPassphrase(passphrase string) (*KeyRing, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("security: passphrase cannot be empty")
	}
	hash := sha256.Sum256([]byte(passphrase))
	return NewKeyRing([][]byte{hash[:]})
}

// Encrypt seals plaintext with the active (first) key. The returned
// ciphertext has the GCM nonce prepended.
func (kr *KeyRing) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: cannot encrypt empty data")
	}
	gcm, err := newGCM(kr.keys[0])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext, trying each key in the ring in order. It
// returns ErrNoKeyMatched if every key fails, which a caller should treat
// as data corruption or a key that has already been retired.
func (kr *KeyRing) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: cannot decrypt empty data")
	}
	for _, key := range kr.keys {
		gcm, err := newGCM(key)
		if err != nil {
			return nil, err
		}
		nonceSize := gcm.NonceSize()
		if len(ciphertext) < nonceSize {
			continue
		}
		nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
		plaintext, err := gcm.Open(nil, nonce, body, nil)
		if err == nil {
			return plaintext, nil
		}
	}
	return nil, ErrNoKeyMatched
}

// Len reports how many keys are currently in the ring.
func (kr *KeyRing) Len() int {
	return len(kr.keys)
}

// GenerateEncryptionKey returns 32 random bytes suitable for KeyRing. It
// backs the gateway's ephemeral-key path: an in-memory database with no
// configured db_encrypt_keys still needs a live key to satisfy the store's
// encrypt-on-write columns, even though nothing will ever need to decrypt
// them after this process exits.
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: generate encryption key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create GCM: %w", err)
	}
	return gcm, nil
}
