// Package assignment owns the in-memory dataset and the person to activity
// mapping. Every mutation runs under one write lock, so readers never see a
// half-applied change. The engine does no I/O; callers persist afterwards.
package assignment

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
	"github.com/google/uuid"
)

type Engine struct {
	mu sync.RWMutex
	ds *models.Dataset

	pickIcon func() string
}

// NewEngine takes ownership of ds. A nil ds starts an empty roster.
func NewEngine(ds *models.Dataset) *Engine {
	if ds == nil {
		ds = models.NewDataset()
	}
	ds.Normalize()
	return &Engine{
		ds:       ds,
		pickIcon: func() string { return models.Icons[rand.IntN(len(models.Icons))] },
	}
}

// Snapshot returns a deep copy of the current dataset.
func (e *Engine) Snapshot() *models.Dataset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ds.Clone()
}

// Replace swaps the whole dataset, e.g. after unlock or import.
func (e *Engine) Replace(ds *models.Dataset) {
	if ds == nil {
		ds = models.NewDataset()
	}
	ds = ds.Clone()
	ds.Normalize()
	e.mu.Lock()
	e.ds = ds
	e.mu.Unlock()
}

func (e *Engine) write(fn func(ds *models.Dataset) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ds)
}

// Assign points the person at the activity. Unknown ids are ignored.
func (e *Engine) Assign(personID, activityID string) bool {
	return e.write(func(ds *models.Dataset) bool {
		return assign(ds, personID, activityID)
	})
}

func assign(ds *models.Dataset, personID, activityID string) bool {
	p := ds.Person(personID)
	if p == nil || ds.Activity(activityID) == nil || p.AssignedTo(activityID) {
		return false
	}
	id := activityID
	p.ActivityID = &id
	return true
}

// Unassign returns the person to the pool.
func (e *Engine) Unassign(personID string) bool {
	return e.write(func(ds *models.Dataset) bool {
		return unassign(ds, personID)
	})
}

func unassign(ds *models.Dataset, personID string) bool {
	p := ds.Person(personID)
	if p == nil || !p.Assigned() {
		return false
	}
	p.ActivityID = nil
	return true
}

func (e *Engine) RemovePerson(personID string) bool {
	return e.write(func(ds *models.Dataset) bool {
		return ds.RemovePerson(personID)
	})
}

// RemoveActivity deletes the activity and unassigns its members in the same
// critical section.
func (e *Engine) RemoveActivity(activityID string) bool {
	return e.write(func(ds *models.Dataset) bool {
		return ds.RemoveActivity(activityID)
	})
}

// ResetAllAssignments empties every activity.
func (e *Engine) ResetAllAssignments() bool {
	return e.write(func(ds *models.Dataset) bool {
		changed := false
		for i := range ds.People {
			if ds.People[i].Assigned() {
				ds.People[i].ActivityID = nil
				changed = true
			}
		}
		return changed
	})
}

func (e *Engine) Members(activityID string) []models.Person {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return clonePeople(e.ds.Members(activityID))
}

func (e *Engine) Unassigned() []models.Person {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return clonePeople(e.ds.Unassigned())
}

func clonePeople(in []models.Person) []models.Person {
	out := make([]models.Person, len(in))
	for i, p := range in {
		if p.ActivityID != nil {
			id := *p.ActivityID
			p.ActivityID = &id
		}
		out[i] = p
	}
	return out
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.ErrEmptyName
	}
	return name, nil
}

func nameTaken(ds *models.Dataset, name, exceptID string) bool {
	for _, p := range ds.People {
		if p.ID != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// AddPerson appends a new unassigned person.
func (e *Engine) AddPerson(name string) (models.Person, error) {
	name, err := cleanName(name)
	if err != nil {
		return models.Person{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.ds.People) >= models.MaxPeople {
		return models.Person{}, common.ErrRosterFull
	}
	if nameTaken(e.ds, name, "") {
		return models.Person{}, common.ErrDuplicateName
	}
	p := models.Person{ID: uuid.NewString(), Name: name, Color: models.ColorFrom(name)}
	e.ds.People = append(e.ds.People, p)
	return p, nil
}

// RenamePerson changes the name and recomputes the color.
func (e *Engine) RenamePerson(personID, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.ds.Person(personID)
	if p == nil {
		return common.ErrNotFound
	}
	if nameTaken(e.ds, name, personID) {
		return common.ErrDuplicateName
	}
	p.Name = name
	p.Color = models.ColorFrom(name)
	return nil
}

// AddActivity appends an activity with a random icon.
func (e *Engine) AddActivity(title string, kind models.ActivityKind, payload string) (models.Activity, error) {
	a := models.Activity{
		ID:      uuid.NewString(),
		Title:   strings.TrimSpace(title),
		Kind:    kind,
		Payload: strings.TrimSpace(payload),
	}
	if err := a.Validate(); err != nil {
		return models.Activity{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a.Icon = e.pickIcon()
	e.ds.Activities = append(e.ds.Activities, a)
	return a, nil
}

// SetBackground stores the image for date, replacing any previous one.
func (e *Engine) SetBackground(date, dataURL string) error {
	day, err := models.ParseDate(date)
	if err != nil {
		return err
	}
	if _, err := models.ParseDataURL(dataURL); err != nil {
		return err
	}
	e.write(func(ds *models.Dataset) bool {
		ds.Backgrounds[day] = dataURL
		return true
	})
	return nil
}

// Background returns the image stored for date, if any.
func (e *Engine) Background(date string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.ds.Backgrounds[date]
	return v, ok
}

func (e *Engine) SetBubbleSize(n int) error {
	if n < models.MinBubbleSize || n > models.MaxBubbleSize {
		return common.ErrOutOfRange
	}
	e.write(func(ds *models.Dataset) bool {
		ds.Settings.BubbleSize = n
		return true
	})
	return nil
}

// SortPeople orders the roster by name, case-insensitively.
func (e *Engine) SortPeople() bool {
	return e.write(func(ds *models.Dataset) bool {
		if slices.IsSortedFunc(ds.People, comparePeople) {
			return false
		}
		slices.SortStableFunc(ds.People, comparePeople)
		return true
	})
}

func comparePeople(a, b models.Person) int {
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}
