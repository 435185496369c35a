// Package vault persists the roster dataset, encrypted under the session key
// when one is held and as legacy plaintext otherwise.
//
// Migration is one-way: the first encrypted save removes the plaintext
// record in the same batch, and plaintext is never written again while an
// envelope exists.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/logging"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
)

// Store is the EncryptedStateStore. Saves and commits are serialized.
type Store struct {
	kv  kvstore.Store
	log logging.Logger

	writeMu sync.Mutex

	stateMu        sync.RWMutex
	locked         bool
	needsMigration bool
}

func NewStore(kv kvstore.Store, log logging.Logger) *Store {
	return &Store{kv: kv, log: log.With("component", "vault")}
}

// Locked reports whether the last Load found an envelope but had no key.
func (s *Store) Locked() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.locked
}

// NeedsMigration reports whether the last Load came from legacy plaintext.
func (s *Store) NeedsMigration() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.needsMigration
}

func (s *Store) setState(locked, migrate bool) {
	s.stateMu.Lock()
	s.locked, s.needsMigration = locked, migrate
	s.stateMu.Unlock()
}

// HasEnvelope reports whether an encrypted dataset is stored.
func (s *Store) HasEnvelope(ctx context.Context) (bool, error) {
	raw, err := s.kv.Get(ctx, kvstore.KeyDatasetEncrypted)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Load reads the dataset. An envelope takes precedence: with a key it is
// decrypted (a wrong key yields common.ErrAuthenticationFailure), without a
// key a default dataset is returned and the store is marked locked. With no
// envelope the legacy plaintext record is used, and with neither a default
// dataset is returned.
func (s *Store) Load(ctx context.Context, key *cryptox.SessionKey) (*models.Dataset, error) {
	raw, err := s.kv.Get(ctx, kvstore.KeyDatasetEncrypted)
	if err != nil {
		return nil, err
	}

	if raw != nil {
		if key == nil {
			s.setState(true, false)
			s.log.Info(ctx, "encrypted dataset found, waiting for unlock")
			return models.NewDataset(), nil
		}
		var env cryptox.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: envelope: %v", common.ErrMalformedRecord, err)
		}
		ds := &models.Dataset{}
		if err := cryptox.OpenJSON(&env, key, ds); err != nil {
			return nil, err
		}
		s.finishLoad(ctx, ds)
		s.setState(false, false)
		return ds, nil
	}

	raw, err = s.kv.Get(ctx, kvstore.KeyDatasetPlaintext)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		s.setState(false, false)
		return models.NewDataset(), nil
	}

	ds := &models.Dataset{}
	if err := json.Unmarshal(raw, ds); err != nil {
		return nil, fmt.Errorf("%w: plaintext dataset: %v", common.ErrMalformedRecord, err)
	}
	s.finishLoad(ctx, ds)
	s.setState(false, true)
	s.log.Info(ctx, "legacy plaintext dataset loaded", "people", len(ds.People))
	return ds, nil
}

func (s *Store) finishLoad(ctx context.Context, ds *models.Dataset) {
	if n := ds.Normalize(); n > 0 {
		s.log.Warn(ctx, "cleared dangling activity references", "count", n)
	}
}

// EnvelopeOps returns the batch writing ds encrypted under key and removing
// any plaintext copy.
func (s *Store) EnvelopeOps(ds *models.Dataset, key *cryptox.SessionKey) ([]kvstore.Op, error) {
	env, err := cryptox.SealJSON(ds, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt dataset: %w", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return []kvstore.Op{
		kvstore.PutOp(kvstore.KeyDatasetEncrypted, raw),
		kvstore.DeleteOp(kvstore.KeyDatasetPlaintext),
	}, nil
}

// Commit applies ops atomically, flushes, and marks the store as holding an
// envelope that the caller has the key for. The batch is committed once
// Apply succeeds: a later flush failure is returned wrapped with
// common.ErrNotFlushed and the new state is already in effect.
func (s *Store) Commit(ctx context.Context, ops ...kvstore.Op) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit(ctx, ops...)
}

func (s *Store) commit(ctx context.Context, ops ...kvstore.Op) error {
	if err := s.kv.Apply(ctx, ops...); err != nil {
		return err
	}
	s.setState(false, false)
	return s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) error {
	if err := s.kv.Flush(ctx); err != nil {
		s.log.Warn(ctx, "batch committed but flush failed", "error", err)
		return fmt.Errorf("%w: %w", common.ErrNotFlushed, err)
	}
	return nil
}

// Save writes ds. With a key the dataset is encrypted and the plaintext
// record deleted in one batch. Without a key plaintext is written, unless an
// envelope already exists, in which case common.ErrLocked is returned.
// A failure is always returned to the caller.
func (s *Store) Save(ctx context.Context, ds *models.Dataset, key *cryptox.SessionKey) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if key != nil {
		ops, err := s.EnvelopeOps(ds, key)
		if err != nil {
			return err
		}
		if err := s.commit(ctx, ops...); err != nil {
			s.log.Error(ctx, "encrypted save failed", "error", err)
			return err
		}
		s.log.Debug(ctx, "dataset saved", "encrypted", true, "people", len(ds.People))
		return nil
	}

	exists, err := s.HasEnvelope(ctx)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrLocked
	}

	raw, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	if err := s.kv.Apply(ctx, kvstore.PutOp(kvstore.KeyDatasetPlaintext, raw)); err != nil {
		s.log.Error(ctx, "plaintext save failed", "error", err)
		return err
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.log.Debug(ctx, "dataset saved", "encrypted", false, "people", len(ds.People))
	return nil
}
