package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/rosterkeeper/internal/assignment"
	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/models"
	"github.com/fatih/color"
)

// shortID is how ids are shown and typed.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// match finds the single entry whose id equals ref, whose id starts with
// ref, or whose label equals ref ignoring case, in that order of preference.
func match(ref string, n int, id, label func(int) string) (int, error) {
	if ref == "" {
		return -1, fmt.Errorf("%w: empty reference", common.ErrNotFound)
	}
	for i := 0; i < n; i++ {
		if id(i) == ref {
			return i, nil
		}
	}
	found := -1
	for i := 0; i < n; i++ {
		if strings.HasPrefix(id(i), ref) || strings.EqualFold(label(i), ref) {
			if found >= 0 {
				return -1, fmt.Errorf("%q is ambiguous, use a longer id", ref)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: %q", common.ErrNotFound, ref)
	}
	return found, nil
}

func findPerson(ds *models.Dataset, ref string) (models.Person, error) {
	i, err := match(ref, len(ds.People),
		func(i int) string { return ds.People[i].ID },
		func(i int) string { return ds.People[i].Name })
	if err != nil {
		return models.Person{}, err
	}
	return ds.People[i], nil
}

func findActivity(ds *models.Dataset, ref string) (models.Activity, error) {
	i, err := match(ref, len(ds.Activities),
		func(i int) string { return ds.Activities[i].ID },
		func(i int) string { return ds.Activities[i].Title })
	if err != nil {
		return models.Activity{}, err
	}
	return ds.Activities[i], nil
}

func usage(text string) error {
	return fmt.Errorf("usage: %s", text)
}

func (a *App) People(ctx context.Context) error {
	ds := a.roster.Snapshot()
	if len(ds.People) == 0 {
		a.hint("No people yet, add one with " + color.YellowString("add <name>"))
		return nil
	}
	for _, p := range ds.People {
		where := color.HiBlackString("pool")
		if p.ActivityID != nil {
			if act := ds.Activity(*p.ActivityID); act != nil {
				where = act.Icon + " " + act.Title
			}
		}
		fmt.Fprintf(a.out, "  %s  %-24s %s\n", shortID(p.ID), p.Name, where)
	}
	fmt.Fprintf(a.out, "%d/%d people\n", len(ds.People), models.MaxPeople)
	return nil
}

func (a *App) Activities(ctx context.Context) error {
	ds := a.roster.Snapshot()
	if len(ds.Activities) == 0 {
		a.hint("No activities yet, add one with " + color.YellowString("addact"))
		return nil
	}
	for _, act := range ds.Activities {
		members := ds.Members(act.ID)
		fmt.Fprintf(a.out, "  %s  %s %s (%s, %d)\n", shortID(act.ID), act.Icon, act.Title, act.Kind, len(members))
		for _, p := range members {
			fmt.Fprintf(a.out, "      - %s\n", p.Name)
		}
	}
	if pool := ds.Unassigned(); len(pool) > 0 {
		names := make([]string, len(pool))
		for i, p := range pool {
			names[i] = p.Name
		}
		fmt.Fprintf(a.out, "  pool: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func (a *App) AddPerson(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		var err error
		if name, err = getSimpleText(a.reader, "Name", a.out); err != nil {
			return err
		}
	}
	p, err := a.roster.AddPerson(ctx, name)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("Added %s (%s)", p.Name, shortID(p.ID)))
	return nil
}

func (a *App) RenamePerson(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rename <person>")
	}
	p, err := findPerson(a.roster.Snapshot(), args[0])
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "New name for "+p.Name, a.out)
	if err != nil {
		return err
	}
	if err := a.roster.RenamePerson(ctx, p.ID, name); err != nil {
		return err
	}
	a.ok("Renamed to " + strings.TrimSpace(name))
	return nil
}

func (a *App) RemovePerson(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rm <person>")
	}
	p, err := findPerson(a.roster.Snapshot(), args[0])
	if err != nil {
		return err
	}
	if err := a.roster.RemovePerson(ctx, p.ID); err != nil {
		return err
	}
	a.ok("Removed " + p.Name)
	return nil
}

func (a *App) AddActivity(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	kind, err := getSimpleText(a.reader, "Type (color or image)", a.out)
	if err != nil {
		return err
	}

	var payload string
	switch models.ActivityKind(strings.ToLower(kind)) {
	case models.ActivityKindColor:
		if payload, err = getSimpleText(a.reader, "Color (e.g. #4a90d9)", a.out); err != nil {
			return err
		}
	case models.ActivityKindImage:
		path, err := getSimpleText(a.reader, "Image file", a.out)
		if err != nil {
			return err
		}
		if payload, err = imageDataURL(path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidKind, kind)
	}

	act, err := a.roster.AddActivity(ctx, title, models.ActivityKind(strings.ToLower(kind)), payload)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("Added %s %s (%s)", act.Icon, act.Title, shortID(act.ID)))
	return nil
}

func (a *App) RemoveActivity(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rmact <activity>")
	}
	act, err := findActivity(a.roster.Snapshot(), args[0])
	if err != nil {
		return err
	}
	if err := a.roster.RemoveActivity(ctx, act.ID); err != nil {
		return err
	}
	a.ok("Removed " + act.Title + ", its members are back in the pool")
	return nil
}

// drop resolves ref as the source of a drag gesture and lets the service
// apply the target.
func (a *App) drop(ctx context.Context, ref string, target assignment.DropTarget) (models.Person, error) {
	p, err := findPerson(a.roster.Snapshot(), ref)
	if err != nil {
		return models.Person{}, err
	}
	d, ok := a.roster.BeginDrag(p.ID)
	if !ok {
		return models.Person{}, fmt.Errorf("%w: %q", common.ErrNotFound, ref)
	}
	return p, a.roster.Drop(ctx, d, target)
}

func (a *App) Assign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("assign <person> <activity>")
	}
	act, err := findActivity(a.roster.Snapshot(), args[1])
	if err != nil {
		return err
	}
	p, err := a.drop(ctx, args[0], assignment.ActivityTarget(act.ID))
	if err != nil {
		return err
	}
	a.ok(p.Name + " → " + act.Icon + " " + act.Title)
	return nil
}

func (a *App) Unassign(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("unassign <person>")
	}
	p, err := a.drop(ctx, args[0], assignment.PoolTarget())
	if err != nil {
		return err
	}
	a.ok(p.Name + " is back in the pool")
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	yes, err := a.confirm("Empty every activity for a new day?")
	if err != nil || !yes {
		return err
	}
	if err := a.roster.ResetAllAssignments(ctx); err != nil {
		return err
	}
	a.ok("Everyone is back in the pool")
	return nil
}

func (a *App) Sort(ctx context.Context) error {
	if err := a.roster.SortPeople(ctx); err != nil {
		return err
	}
	a.ok("Sorted A to Z")
	return nil
}

func (a *App) Size(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintf(a.out, "Bubble size: %d (range %d-%d)\n",
			a.roster.Snapshot().Settings.BubbleSize, models.MinBubbleSize, models.MaxBubbleSize)
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return usage("size <number>")
	}
	if err := a.roster.SetBubbleSize(ctx, n); err != nil {
		return err
	}
	a.ok(fmt.Sprintf("Bubble size set to %d", n))
	return nil
}

func (a *App) Background(ctx context.Context, args []string) error {
	if len(args) != 2 {
		ds := a.roster.Snapshot()
		for _, d := range ds.BackgroundDates() {
			fmt.Fprintln(a.out, "  "+d)
		}
		return usage("bg <YYYY-MM-DD> <image file>")
	}
	url, err := imageDataURL(args[1])
	if err != nil {
		return err
	}
	if err := a.roster.SetBackground(ctx, args[0], url); err != nil {
		return err
	}
	a.ok("Background set for " + args[0])
	return nil
}

// imageDataURL reads path and encodes it as a data URL after sniffing that
// it really is an image.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %s is %s", common.ErrInvalidImage, path, mediaType)
	}
	return models.Image{MediaType: mediaType, Data: data}.DataURL(), nil
}
