package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
)

// State reports whether a session key is held.
func (s *RosterService) State() session.State {
	return s.auth.State()
}

// Configured reports whether an administrator password has been set.
func (s *RosterService) Configured(ctx context.Context) (bool, error) {
	return s.auth.Configured(ctx)
}

// committed reports whether err still left the write in effect.
func committed(err error) bool {
	return err == nil || errors.Is(err, common.ErrNotFlushed)
}

// InitializeCredential sets the first password and encrypts the current
// roster, migrating any plaintext copy.
func (s *RosterService) InitializeCredential(ctx context.Context, password []byte) error {
	s.touch()
	_, err := s.auth.InitializeCredential(ctx, password)
	s.afterInitialize(committed(err))
	return err
}

// ReinitializeCredential replaces a credential record that cannot be parsed
// and encrypts the roster held in memory, which is empty unless an export
// was imported first. The unreadable encrypted roster is overwritten.
func (s *RosterService) ReinitializeCredential(ctx context.Context, password []byte) error {
	s.touch()
	_, err := s.auth.Reinitialize(ctx, password)
	s.afterInitialize(committed(err))
	if committed(err) {
		s.log.Warn(ctx, "credential re-initialized")
	}
	return err
}

func (s *RosterService) afterInitialize(ok bool) {
	if !ok {
		return
	}
	s.saveMu.Lock()
	s.loaded.Store(true)
	s.corrupt.Store(false)
	s.saveMu.Unlock()
}

// Unlock opens the session and loads the encrypted roster. A plaintext
// roster still waiting for migration is encrypted right away. An encrypted
// roster that cannot be parsed leaves the session unlocked with an empty
// roster, so an import can replace it.
func (s *RosterService) Unlock(ctx context.Context, password []byte) error {
	s.touch()
	if _, err := s.auth.Unlock(ctx, password); err != nil {
		return err
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	key := s.auth.Key()
	if key == nil {
		return common.ErrLocked
	}
	ds, err := s.vault.Load(ctx, key)
	switch {
	case errors.Is(err, common.ErrMalformedRecord):
		s.log.Error(ctx, "stored roster is unreadable, starting empty", "error", err)
		s.corrupt.Store(true)
		s.engine.Replace(models.NewDataset())
		s.loaded.Store(true)
		return fmt.Errorf("load dataset: %w", err)
	case err != nil:
		s.auth.Lock()
		return fmt.Errorf("load dataset: %w", err)
	}

	var flushErr error
	if s.vault.NeedsMigration() {
		err := s.vault.Save(context.WithoutCancel(ctx), ds, key)
		if !committed(err) {
			s.auth.Lock()
			return fmt.Errorf("migrate plaintext dataset: %w", err)
		}
		flushErr = err
		s.log.Info(ctx, "plaintext dataset migrated")
	}
	s.engine.Replace(ds)
	s.loaded.Store(true)
	s.corrupt.Store(false)
	return flushErr
}

// Lock drops the session key. When the stored roster is encrypted the
// in-memory copy is cleared too.
func (s *RosterService) Lock(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.auth.Lock()
	encrypted, err := s.vault.HasEnvelope(ctx)
	if err != nil {
		return err
	}
	if encrypted {
		s.engine.Replace(models.NewDataset())
		s.loaded.Store(false)
	}
	s.log.Info(ctx, "session locked")
	return nil
}

// ChangePassword rotates the password. If the roster was not loaded it is
// loaded under the new key afterwards.
func (s *RosterService) ChangePassword(ctx context.Context, current, next []byte) error {
	s.touch()
	err := s.auth.ChangePassword(ctx, current, next)
	if !committed(err) {
		return err
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.loaded.Load() {
		return err
	}
	key := s.auth.Key()
	if key == nil {
		return common.ErrLocked
	}
	ds, lerr := s.vault.Load(ctx, key)
	if lerr != nil {
		return lerr
	}
	s.engine.Replace(ds)
	s.loaded.Store(true)
	return err
}
