// Package credentials persists the single administrator credential record:
// a verification salt and hash plus an independent encryption salt.
package credentials

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
)

// Record is the stored credential. VerifyHash = KDF(password, VerifySalt);
// EncryptionSalt only ever feeds the data-encryption key derivation.
type Record struct {
	VerifySalt     []byte `json:"verify_salt"`
	VerifyHash     []byte `json:"verify_hash"`
	EncryptionSalt []byte `json:"encryption_salt"`
}

// NewRecord generates fresh independent salts and computes the verifier for
// password.
func NewRecord(password []byte) (*Record, error) {
	verifySalt, err := cryptox.GenerateSalt(cryptox.SaltSize)
	if err != nil {
		return nil, err
	}
	encSalt, err := cryptox.GenerateSalt(cryptox.SaltSize)
	if err != nil {
		return nil, err
	}
	return &Record{
		VerifySalt:     verifySalt,
		VerifyHash:     cryptox.DeriveVerifier(password, verifySalt),
		EncryptionSalt: encSalt,
	}, nil
}

func (r *Record) Validate() error {
	switch {
	case len(r.VerifySalt) == 0:
		return fmt.Errorf("%w: missing verification salt", common.ErrMalformedRecord)
	case len(r.EncryptionSalt) == 0:
		return fmt.Errorf("%w: missing encryption salt", common.ErrMalformedRecord)
	case len(r.VerifyHash) != cryptox.KeySize:
		return fmt.Errorf("%w: verification hash must be %d bytes", common.ErrMalformedRecord, cryptox.KeySize)
	case bytes.Equal(r.VerifySalt, r.EncryptionSalt):
		return fmt.Errorf("%w: verification and encryption salts must differ", common.ErrMalformedRecord)
	}
	return nil
}

// Store reads and writes the record under kvstore.KeyCredential.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns (nil, nil) when no record exists yet, which is the first-run
// state. An unparsable record yields common.ErrMalformedRecord.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	raw, err := s.kv.Get(ctx, kvstore.KeyCredential)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: credential: %v", common.ErrMalformedRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutOp serializes rec as a batch operation, for callers that must commit
// the record together with other writes.
func (s *Store) PutOp(rec *Record) (kvstore.Op, error) {
	if err := rec.Validate(); err != nil {
		return kvstore.Op{}, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return kvstore.Op{}, err
	}
	return kvstore.PutOp(kvstore.KeyCredential, raw), nil
}

// Save replaces the record (delete then insert, one batch) and flushes.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	op, err := s.PutOp(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Apply(ctx, kvstore.DeleteOp(kvstore.KeyCredential), op); err != nil {
		return err
	}
	return s.kv.Flush(ctx)
}

// Verify reports whether password matches rec in constant time.
func Verify(rec *Record, password []byte) bool {
	candidate := cryptox.DeriveVerifier(password, rec.VerifySalt)
	return subtle.ConstantTimeCompare(candidate, rec.VerifyHash) == 1
}
