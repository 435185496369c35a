package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/rosterkeeper/internal/assignment"
	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/exchange"
)

// Export serializes the roster, encrypted when the session is unlocked.
func (s *RosterService) Export(ctx context.Context) ([]byte, error) {
	s.touch()
	if s.locked() {
		return nil, common.ErrLocked
	}

	key := s.auth.Key()
	if key == nil {
		return exchange.Export(s.engine.Snapshot(), nil, nil)
	}
	rec, err := s.creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, common.ErrNotConfigured
	}
	return exchange.Export(s.engine.Snapshot(), key, rec.EncryptionSalt)
}

// BeginImport parses data without touching the roster.
func (s *RosterService) BeginImport(data []byte) (*exchange.Pending, error) {
	s.touch()
	return exchange.Begin(data)
}

// CompleteImport opens p (password is ignored for plaintext documents) and
// replaces the whole roster with its content. On any error the current
// roster is kept.
//
// When the credential record is unreadable nothing can be saved, so the
// roster is replaced in memory only and Status keeps reporting it locked
// until ReinitializeCredential encrypts it under a new password.
func (s *RosterService) CompleteImport(ctx context.Context, p *exchange.Pending, password []byte) error {
	ds, err := p.Complete(password)
	if err != nil {
		return err
	}

	if s.locked() {
		if _, cerr := s.creds.Load(ctx); errors.Is(cerr, common.ErrMalformedRecord) {
			s.saveMu.Lock()
			s.engine.Replace(ds)
			s.saveMu.Unlock()
			s.log.Warn(ctx, "dataset imported into memory, set a new password to save it",
				"people", len(ds.People), "activities", len(ds.Activities))
			return nil
		}
	}

	err = s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		e.Replace(ds)
		return true, nil
	})
	if committed(err) {
		s.log.Info(ctx, "dataset imported", "people", len(ds.People), "activities", len(ds.Activities))
	}
	return err
}
