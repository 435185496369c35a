package assignment

import "github.com/dmitrijs2005/rosterkeeper/internal/models"

// TargetKind classifies where a drag gesture ended.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetPool
	TargetActivity
)

// DropTarget is the resolved end of a gesture. ActivityID is only read for
// TargetActivity.
type DropTarget struct {
	Kind       TargetKind
	ActivityID string
}

func NoTarget() DropTarget                 { return DropTarget{Kind: TargetNone} }
func PoolTarget() DropTarget               { return DropTarget{Kind: TargetPool} }
func ActivityTarget(id string) DropTarget { return DropTarget{Kind: TargetActivity, ActivityID: id} }

// Drag is a gesture in progress, identified by its source person.
type Drag struct {
	PersonID string
}

// BeginDrag starts a gesture on personID. It reports false when the person
// does not exist.
func (e *Engine) BeginDrag(personID string) (Drag, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ds.Person(personID) == nil {
		return Drag{}, false
	}
	return Drag{PersonID: personID}, true
}

// Drop resolves the target and applies the matching mutation under a single
// write lock. TargetNone never changes the dataset; a source or target that
// vanished since BeginDrag is ignored.
func (e *Engine) Drop(d Drag, target DropTarget) bool {
	switch target.Kind {
	case TargetActivity:
		return e.write(func(ds *models.Dataset) bool {
			return assign(ds, d.PersonID, target.ActivityID)
		})
	case TargetPool:
		return e.write(func(ds *models.Dataset) bool {
			return unassign(ds, d.PersonID)
		})
	default:
		return false
	}
}
