// Package session implements the administrator session: credential setup,
// unlock, password rotation and lock. The session key lives only in memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/credentials"
	"github.com/dmitrijs2005/rosterkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/logging"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
	"github.com/dmitrijs2005/rosterkeeper/internal/vault"
	"golang.org/x/sync/semaphore"
)

type State int

const (
	StateLocked State = iota
	StateUnlocked
)

func (s State) String() string {
	if s == StateUnlocked {
		return "unlocked"
	}
	return "locked"
}

// DatasetSource yields the current in-memory dataset for re-encryption.
type DatasetSource interface {
	Snapshot() *models.Dataset
}

// Authenticator is the SessionAuthenticator. At most one of
// InitializeCredential, Reinitialize, Unlock and ChangePassword runs at a
// time; a second concurrent call fails with common.ErrOperationInProgress.
type Authenticator struct {
	creds  *credentials.Store
	vault  *vault.Store
	source DatasetSource
	log    logging.Logger

	inflight *semaphore.Weighted

	// guard is held around the dataset read, the commit and the key swap.
	// Key derivation happens before it is taken.
	guard sync.Locker

	mu  sync.RWMutex
	key *cryptox.SessionKey
}

func NewAuthenticator(creds *credentials.Store, v *vault.Store, source DatasetSource, log logging.Logger) *Authenticator {
	return &Authenticator{
		creds:    creds,
		vault:    v,
		source:   source,
		log:      log.With("component", "session"),
		inflight: semaphore.NewWeighted(1),
		guard:    &sync.Mutex{},
	}
}

// SetCommitLock replaces the lock held while a new credential is committed.
// Callers that save datasets under their own lock pass it here so a save
// never interleaves with a key rotation.
func (a *Authenticator) SetCommitLock(l sync.Locker) {
	a.guard = l
}

func (a *Authenticator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.key.Alive() {
		return StateUnlocked
	}
	return StateLocked
}

// Key returns the session key, or nil while locked.
func (a *Authenticator) Key() *cryptox.SessionKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.key.Alive() {
		return nil
	}
	return a.key
}

func (a *Authenticator) setKey(k *cryptox.SessionKey) {
	a.mu.Lock()
	old := a.key
	a.key = k
	a.mu.Unlock()
	if old != nil && old != k {
		old.Destroy()
	}
}

func (a *Authenticator) begin() (func(), error) {
	if !a.inflight.TryAcquire(1) {
		return nil, common.ErrOperationInProgress
	}
	return func() { a.inflight.Release(1) }, nil
}

// Configured reports whether a credential record exists. A record that
// cannot be parsed yields common.ErrMalformedRecord.
func (a *Authenticator) Configured(ctx context.Context) (bool, error) {
	rec, err := a.creds.Load(ctx)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// InitializeCredential creates the first credential record. The record, the
// current dataset encrypted under the new key and the removal of any
// plaintext copy are committed together; only then does the session unlock.
// Cancelling ctx before the commit leaves storage untouched.
func (a *Authenticator) InitializeCredential(ctx context.Context, password []byte) (*credentials.Record, error) {
	return a.initialize(ctx, password, false)
}

// Reinitialize works like InitializeCredential but also replaces a record
// that cannot be parsed. The stored envelope is overwritten with the current
// dataset, since nothing can decrypt it once its salt is gone.
func (a *Authenticator) Reinitialize(ctx context.Context, password []byte) (*credentials.Record, error) {
	return a.initialize(ctx, password, true)
}

func (a *Authenticator) initialize(ctx context.Context, password []byte, replaceMalformed bool) (*credentials.Record, error) {
	if err := CheckPassword(password); err != nil {
		return nil, err
	}
	release, err := a.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := a.creds.Load(ctx)
	switch {
	case replaceMalformed && errors.Is(err, common.ErrMalformedRecord):
		a.log.Warn(ctx, "replacing malformed credential record")
	case err != nil:
		return nil, err
	case existing != nil:
		return nil, common.ErrAlreadyConfigured
	}

	rec, err := credentials.NewRecord(password)
	if err != nil {
		return nil, err
	}
	key, err := cryptox.DeriveEncryptionKey(password, rec.EncryptionSalt)
	if err != nil {
		return nil, err
	}

	a.guard.Lock()
	defer a.guard.Unlock()

	if err := a.commit(ctx, rec, a.source.Snapshot(), key); err != nil {
		if !errors.Is(err, common.ErrNotFlushed) {
			key.Destroy()
			return nil, err
		}
		a.setKey(key)
		return rec, err
	}

	a.setKey(key)
	a.log.Info(ctx, "administrator credential initialized")
	return rec, nil
}

// Unlock checks password against the stored record and, on success, derives
// and retains the session key. A mismatch yields
// common.ErrAuthenticationFailure; a missing record common.ErrNotConfigured.
func (a *Authenticator) Unlock(ctx context.Context, password []byte) (*cryptox.SessionKey, error) {
	release, err := a.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := a.creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.ErrNotConfigured
	}

	if !credentials.Verify(rec, password) {
		a.log.Warn(ctx, "unlock rejected")
		return nil, common.ErrAuthenticationFailure
	}

	key, err := cryptox.DeriveEncryptionKey(password, rec.EncryptionSalt)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		key.Destroy()
		return nil, err
	}

	a.setKey(key)
	a.log.Info(ctx, "session unlocked")
	return key, nil
}

// ChangePassword rotates every credential value and re-encrypts the stored
// dataset under a key derived from next. The new record and envelope are
// committed in one batch, so a failure before the commit leaves the previous
// pair intact. Once the batch is committed the new key is adopted, even when
// the following flush fails.
func (a *Authenticator) ChangePassword(ctx context.Context, current, next []byte) error {
	if err := CheckPassword(next); err != nil {
		return err
	}
	release, err := a.begin()
	if err != nil {
		return err
	}
	defer release()

	rec, err := a.creds.Load(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return common.ErrNotConfigured
	}
	if !credentials.Verify(rec, current) {
		a.log.Warn(ctx, "password change rejected")
		return common.ErrAuthenticationFailure
	}

	oldKey, err := cryptox.DeriveEncryptionKey(current, rec.EncryptionSalt)
	if err != nil {
		return err
	}
	defer oldKey.Destroy()

	newRec, err := credentials.NewRecord(next)
	if err != nil {
		return err
	}
	newKey, err := cryptox.DeriveEncryptionKey(next, newRec.EncryptionSalt)
	if err != nil {
		return err
	}

	a.guard.Lock()
	defer a.guard.Unlock()

	ds, err := a.vault.Load(ctx, oldKey)
	if err != nil {
		newKey.Destroy()
		return fmt.Errorf("decrypt current dataset: %w", err)
	}

	if err := a.commit(ctx, newRec, ds, newKey); err != nil {
		if !errors.Is(err, common.ErrNotFlushed) {
			newKey.Destroy()
			return err
		}
		a.setKey(newKey)
		return err
	}

	a.setKey(newKey)
	a.log.Info(ctx, "administrator password changed")
	return nil
}

// Lock discards the session key. Persisted data is not touched.
func (a *Authenticator) Lock() {
	a.setKey(nil)
}

func (a *Authenticator) commit(ctx context.Context, rec *credentials.Record, ds *models.Dataset, key *cryptox.SessionKey) error {
	credOp, err := a.creds.PutOp(rec)
	if err != nil {
		return err
	}
	envOps, err := a.vault.EnvelopeOps(ds, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ops := append([]kvstore.Op{credOp}, envOps...)
	return a.vault.Commit(ctx, ops...)
}
