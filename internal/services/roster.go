// Package services contains the application service the CLI talks to.
// RosterService ties the assignment engine, the encrypted store and the
// administrator session together: every dataset mutation is followed by a
// save under the current session key.
package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/rosterkeeper/internal/assignment"
	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/credentials"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/logging"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
	"github.com/dmitrijs2005/rosterkeeper/internal/vault"
)

// Status summarizes what the prompt shows.
type Status struct {
	Configured     bool
	Session        session.State
	Locked         bool
	NeedsMigration bool
	// Corrupt is set when the credential record or the stored roster could
	// not be parsed.
	Corrupt        bool
	People         int
	Activities     int
	Assigned       int
}

type RosterService struct {
	creds  *credentials.Store
	vault  *vault.Store
	engine *assignment.Engine
	auth   *session.Authenticator
	log    logging.Logger

	// saveMu orders mutation+save pairs so snapshots reach the store in the
	// order they were taken. The authenticator holds it while it commits a
	// new credential.
	saveMu sync.Mutex

	// loaded is set while the engine holds the persisted roster, or its
	// replacement when the stored one was unreadable. Mutations need it.
	loaded  atomic.Bool
	corrupt atomic.Bool

	lastActivity atomic.Int64
	now          func() time.Time
}

func NewRosterService(kv kvstore.Store, log logging.Logger) *RosterService {
	creds := credentials.NewStore(kv)
	v := vault.NewStore(kv, log)
	engine := assignment.NewEngine(nil)
	s := &RosterService{
		creds:  creds,
		vault:  v,
		engine: engine,
		auth:   session.NewAuthenticator(creds, v, engine, log),
		log:    log.With("component", "roster"),
		now:    time.Now,
	}
	s.auth.SetCommitLock(&s.saveMu)
	s.touch()
	return s
}

func (s *RosterService) touch() {
	s.lastActivity.Store(s.now().UnixNano())
}

// Open performs the initial load. With an envelope present the roster stays
// empty until Unlock. An unreadable plaintext roster is reported in Status
// and replaced by an empty one, so the next save or import overwrites it.
func (s *RosterService) Open(ctx context.Context) error {
	ds, err := s.vault.Load(ctx, nil)
	switch {
	case errors.Is(err, common.ErrMalformedRecord):
		s.log.Error(ctx, "stored roster is unreadable, starting empty", "error", err)
		s.corrupt.Store(true)
		ds = models.NewDataset()
	case err != nil:
		return err
	}
	s.engine.Replace(ds)
	s.loaded.Store(!s.vault.Locked())
	return nil
}

func (s *RosterService) Status(ctx context.Context) (Status, error) {
	configured, err := s.auth.Configured(ctx)
	credCorrupt := errors.Is(err, common.ErrMalformedRecord)
	switch {
	case credCorrupt:
		configured = true
	case err != nil:
		return Status{}, err
	}
	ds := s.engine.Snapshot()
	st := Status{
		Configured:     configured,
		Session:        s.auth.State(),
		Locked:         s.locked(),
		NeedsMigration: s.vault.NeedsMigration(),
		Corrupt:        credCorrupt || s.corrupt.Load(),
		People:         len(ds.People),
		Activities:     len(ds.Activities),
	}
	for _, p := range ds.People {
		if p.Assigned() {
			st.Assigned++
		}
	}
	return st, nil
}

// locked reports whether the engine is waiting for the encrypted roster.
func (s *RosterService) locked() bool {
	return !s.loaded.Load()
}

// Snapshot returns a copy of the in-memory dataset.
func (s *RosterService) Snapshot() *models.Dataset {
	return s.engine.Snapshot()
}

// mutate applies fn to the engine and, when it reports a change, persists
// the resulting snapshot. The save is not cancelled with ctx once started.
// A save that was committed but not flushed is still returned as an error.
func (s *RosterService) mutate(ctx context.Context, fn func(e *assignment.Engine) (bool, error)) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.touch()

	if s.locked() {
		return common.ErrLocked
	}

	changed, err := fn(s.engine)
	if err != nil || !changed {
		return err
	}
	err = s.vault.Save(context.WithoutCancel(ctx), s.engine.Snapshot(), s.auth.Key())
	if err == nil || errors.Is(err, common.ErrNotFlushed) {
		s.corrupt.Store(false)
	}
	return err
}

func (s *RosterService) AddPerson(ctx context.Context, name string) (models.Person, error) {
	var p models.Person
	err := s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		var err error
		p, err = e.AddPerson(name)
		return err == nil, err
	})
	return p, err
}

func (s *RosterService) RenamePerson(ctx context.Context, personID, name string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		err := e.RenamePerson(personID, name)
		return err == nil, err
	})
}

func (s *RosterService) RemovePerson(ctx context.Context, personID string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.RemovePerson(personID), nil
	})
}

func (s *RosterService) AddActivity(ctx context.Context, title string, kind models.ActivityKind, payload string) (models.Activity, error) {
	var a models.Activity
	err := s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		var err error
		a, err = e.AddActivity(title, kind, payload)
		return err == nil, err
	})
	return a, err
}

func (s *RosterService) RemoveActivity(ctx context.Context, activityID string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.RemoveActivity(activityID), nil
	})
}

func (s *RosterService) Assign(ctx context.Context, personID, activityID string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.Assign(personID, activityID), nil
	})
}

func (s *RosterService) Unassign(ctx context.Context, personID string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.Unassign(personID), nil
	})
}

func (s *RosterService) BeginDrag(personID string) (assignment.Drag, bool) {
	s.touch()
	return s.engine.BeginDrag(personID)
}

// Drop finishes a drag gesture and saves when it changed anything.
func (s *RosterService) Drop(ctx context.Context, d assignment.Drag, target assignment.DropTarget) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.Drop(d, target), nil
	})
}

func (s *RosterService) ResetAllAssignments(ctx context.Context) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.ResetAllAssignments(), nil
	})
}

func (s *RosterService) SortPeople(ctx context.Context) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		return e.SortPeople(), nil
	})
}

func (s *RosterService) SetBubbleSize(ctx context.Context, n int) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		err := e.SetBubbleSize(n)
		return err == nil, err
	})
}

func (s *RosterService) SetBackground(ctx context.Context, date, dataURL string) error {
	return s.mutate(ctx, func(e *assignment.Engine) (bool, error) {
		err := e.SetBackground(date, dataURL)
		return err == nil, err
	})
}
