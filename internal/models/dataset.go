package models

import "sort"

const (
	// MaxPeople bounds the roster size.
	MaxPeople = 150

	DefaultBubbleSize = 72
	MinBubbleSize     = 40
	MaxBubbleSize     = 160
)

// Person is one roster member. ActivityID is nil when unassigned.
type Person struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ActivityID *string `json:"activityId"`
	Color      string  `json:"color,omitempty"`
}

// Assigned reports whether p currently points at an activity.
func (p Person) Assigned() bool {
	return p.ActivityID != nil
}

// AssignedTo reports whether p points at the activity with the given id.
func (p Person) AssignedTo(activityID string) bool {
	return p.ActivityID != nil && *p.ActivityID == activityID
}

type Settings struct {
	BubbleSize int `json:"bubbleSize"`
}

func DefaultSettings() Settings {
	return Settings{BubbleSize: DefaultBubbleSize}
}

// Dataset is the aggregate root. Backgrounds maps an ISO date (YYYY-MM-DD)
// to an image data URL.
type Dataset struct {
	People      []Person          `json:"people"`
	Activities  []Activity        `json:"activities"`
	Backgrounds map[string]string `json:"backgrounds"`
	Settings    Settings          `json:"settings"`
}

// NewDataset returns an empty dataset with default settings.
func NewDataset() *Dataset {
	return &Dataset{
		People:      []Person{},
		Activities:  []Activity{},
		Backgrounds: map[string]string{},
		Settings:    DefaultSettings(),
	}
}

// Clone returns a deep copy of d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := &Dataset{
		People:      make([]Person, len(d.People)),
		Activities:  make([]Activity, len(d.Activities)),
		Backgrounds: make(map[string]string, len(d.Backgrounds)),
		Settings:    d.Settings,
	}
	for i, p := range d.People {
		if p.ActivityID != nil {
			id := *p.ActivityID
			p.ActivityID = &id
		}
		c.People[i] = p
	}
	copy(c.Activities, d.Activities)
	for k, v := range d.Backgrounds {
		c.Backgrounds[k] = v
	}
	return c
}

// Normalize repairs a dataset read from storage or an import: nil
// collections become empty, an out-of-range bubble size is reset to the
// default, missing colors are derived from the name and any activityId that
// does not reference an existing activity is cleared. It returns the number
// of dangling references that were cleared.
func (d *Dataset) Normalize() int {
	if d.People == nil {
		d.People = []Person{}
	}
	if d.Activities == nil {
		d.Activities = []Activity{}
	}
	if d.Backgrounds == nil {
		d.Backgrounds = map[string]string{}
	}
	if d.Settings.BubbleSize < MinBubbleSize || d.Settings.BubbleSize > MaxBubbleSize {
		d.Settings.BubbleSize = DefaultBubbleSize
	}

	known := make(map[string]struct{}, len(d.Activities))
	for _, a := range d.Activities {
		known[a.ID] = struct{}{}
	}

	cleared := 0
	for i := range d.People {
		p := &d.People[i]
		if p.Color == "" {
			p.Color = ColorFrom(p.Name)
		}
		if p.ActivityID == nil {
			continue
		}
		if _, ok := known[*p.ActivityID]; !ok {
			p.ActivityID = nil
			cleared++
		}
	}
	return cleared
}

func (d *Dataset) personIndex(id string) int {
	for i := range d.People {
		if d.People[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Dataset) activityIndex(id string) int {
	for i := range d.Activities {
		if d.Activities[i].ID == id {
			return i
		}
	}
	return -1
}

// Person returns a pointer into d.People or nil.
func (d *Dataset) Person(id string) *Person {
	if i := d.personIndex(id); i >= 0 {
		return &d.People[i]
	}
	return nil
}

// Activity returns a pointer into d.Activities or nil.
func (d *Dataset) Activity(id string) *Activity {
	if i := d.activityIndex(id); i >= 0 {
		return &d.Activities[i]
	}
	return nil
}

// RemovePerson deletes the person with id and reports whether it existed.
func (d *Dataset) RemovePerson(id string) bool {
	i := d.personIndex(id)
	if i < 0 {
		return false
	}
	d.People = append(d.People[:i], d.People[i+1:]...)
	return true
}

// RemoveActivity deletes the activity and clears every reference to it.
func (d *Dataset) RemoveActivity(id string) bool {
	i := d.activityIndex(id)
	if i < 0 {
		return false
	}
	d.Activities = append(d.Activities[:i], d.Activities[i+1:]...)
	for j := range d.People {
		if d.People[j].AssignedTo(id) {
			d.People[j].ActivityID = nil
		}
	}
	return true
}

// Members returns the people assigned to the activity, in roster order.
func (d *Dataset) Members(activityID string) []Person {
	var out []Person
	for _, p := range d.People {
		if p.AssignedTo(activityID) {
			out = append(out, p)
		}
	}
	return out
}

// Unassigned returns the people not assigned to any activity.
func (d *Dataset) Unassigned() []Person {
	var out []Person
	for _, p := range d.People {
		if !p.Assigned() {
			out = append(out, p)
		}
	}
	return out
}

// BackgroundDates returns the dates that carry a background, sorted.
func (d *Dataset) BackgroundDates() []string {
	dates := make([]string, 0, len(d.Backgrounds))
	for k := range d.Backgrounds {
		dates = append(dates, k)
	}
	sort.Strings(dates)
	return dates
}
