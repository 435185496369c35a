// Package cryptox holds the password-based key derivation and authenticated
// encryption primitives. Nothing here touches the backing store; the only
// external state consumed is entropy for salts and nonces.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the default salt length in bytes.
	SaltSize = 16
	// KDFIterations is the PBKDF2 work factor shared by both derivations.
	KDFIterations = 100_000
	// KeySize is the PBKDF2 output length (AES-256 / 256-bit verifier).
	KeySize = 32
	// NonceSize is the AES-GCM nonce length (96 bits).
	NonceSize = 12
)

var errKeyDestroyed = errors.New("session key destroyed")

// Envelope is one encrypted payload: the nonce and the sealed bytes
// (ciphertext followed by the GCM tag).
type Envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// SessionKey is an AEAD key derived from the administrator password. It lives
// only in memory; the raw bytes are never exported or serialized.
type SessionKey struct {
	raw  []byte
	aead cipher.AEAD
}

// GenerateSalt returns n random bytes. n <= 0 selects SaltSize.
func GenerateSalt(n int) ([]byte, error) {
	if n <= 0 {
		n = SaltSize
	}
	salt, err := common.RandomBytes(n)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func derive(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, KDFIterations, KeySize, sha256.New)
}

// DeriveVerifier computes PBKDF2-HMAC-SHA256(password, salt) used solely to
// check a supplied password. Deterministic for fixed inputs.
func DeriveVerifier(password, salt []byte) []byte {
	return derive(password, salt)
}

// DeriveEncryptionKey runs the same KDF as DeriveVerifier but binds the
// output into an AES-256-GCM key instead of returning it.
func DeriveEncryptionKey(password, salt []byte) (*SessionKey, error) {
	raw := derive(password, salt)
	block, err := aes.NewCipher(raw)
	if err != nil {
		common.WipeByteArray(raw)
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		common.WipeByteArray(raw)
		return nil, err
	}
	return &SessionKey{raw: raw, aead: aead}, nil
}

// Destroy wipes the key material. Any later use of the key fails.
func (k *SessionKey) Destroy() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.raw)
	k.raw = nil
	k.aead = nil
}

// Alive reports whether the key can still be used.
func (k *SessionKey) Alive() bool {
	return k != nil && k.aead != nil
}

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(key *SessionKey, plaintext []byte) (*Envelope, error) {
	if !key.Alive() {
		return nil, errKeyDestroyed
	}
	nonce, err := common.RandomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return &Envelope{Nonce: nonce, Ciphertext: key.aead.Seal(nil, nonce, plaintext, nil)}, nil
}

// Decrypt opens env with key. Any integrity failure (wrong key, corrupted or
// tampered data) yields common.ErrAuthenticationFailure and no plaintext.
func Decrypt(key *SessionKey, env *Envelope) ([]byte, error) {
	if !key.Alive() {
		return nil, errKeyDestroyed
	}
	if env == nil || len(env.Nonce) != NonceSize {
		return nil, common.ErrAuthenticationFailure
	}
	plaintext, err := key.aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return plaintext, nil
}

// SealJSON serializes v to JSON and encrypts it with key.
func SealJSON(v any, key *SessionKey) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)
	return Encrypt(key, plaintext)
}

// OpenJSON decrypts env and unmarshals the JSON payload into v.
// Decryption failures are reported as common.ErrAuthenticationFailure;
// a payload that decrypts but does not parse as common.ErrMalformedRecord.
func OpenJSON(env *Envelope, key *SessionKey, v any) error {
	plaintext, err := Decrypt(key, env)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	return nil
}
