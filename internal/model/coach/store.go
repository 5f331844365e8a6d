package coach

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCoach is returned when neither the requested nor the default coach exists.
var ErrNoCoach = errors.New("no coach available")

// Catalog is the read side of the coach roster shared by the HTTP handlers and
// the reply generator.
type Catalog interface {
	List() []Coach
	FindByID(id string) (Coach, bool)
	Resolve(id string) (Coach, error)
}

// Roster is an immutable Catalog keyed by coach ID. List keeps the order the
// coaches were registered in.
type Roster struct {
	order []string
	byID  map[string]Coach
}

// NewRoster indexes items. IDs are trimmed and must be unique and non-blank.
func NewRoster(items []Coach) (*Roster, error) {
	r := &Roster{byID: make(map[string]Coach, len(items))}
	for i, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("coach #%d: blank id", i)
		}
		if _, dup := r.byID[item.ID]; dup {
			return nil, fmt.Errorf("coach %q registered twice", item.ID)
		}
		r.order = append(r.order, item.ID)
		r.byID[item.ID] = item.clone()
	}
	return r, nil
}

// MustNewRoster is like NewRoster but panics on invalid input. It suits
// static coach lists such as Seed.
func MustNewRoster(items []Coach) *Roster {
	r, err := NewRoster(items)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns copies of every coach.
func (r *Roster) List() []Coach {
	out := make([]Coach, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// FindByID looks up a coach by identifier.
func (r *Roster) FindByID(id string) (Coach, bool) {
	item, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Coach{}, false
	}
	return item.clone(), true
}

// Resolve returns the coach for id, or the default coach when id is blank or
// unknown.
func (r *Roster) Resolve(id string) (Coach, error) {
	if item, ok := r.FindByID(id); ok {
		return item, nil
	}
	if item, ok := r.FindByID(DefaultID); ok {
		return item, nil
	}
	return Coach{}, fmt.Errorf("resolve coach %q: %w", id, ErrNoCoach)
}

func (c Coach) clone() Coach {
	c.Traits = append([]string(nil), c.Traits...)
	c.Focus = append([]string(nil), c.Focus...)
	return c
}
