package coach

import (
	"errors"
	"testing"
)

func TestRosterListKeepsOrderAndCopies(t *testing.T) {
	roster, err := NewRoster(Seed())
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	items := roster.List()
	if len(items) != 3 {
		t.Fatalf("expected 3 coaches, got %d", len(items))
	}
	if items[0].ID != DefaultID || items[2].ID != "straight-talker" {
		t.Fatalf("unexpected order: %q .. %q", items[0].ID, items[2].ID)
	}
	items[0].Name = "mutated"
	items[0].Traits[0] = "mutated"

	got, ok := roster.FindByID(DefaultID)
	if !ok {
		t.Fatalf("default coach %q not found", DefaultID)
	}
	if got.Name != "CAPcoach" || got.Traits[0] != "empathetic" {
		t.Fatalf("roster leaked mutation: %+v", got)
	}

	if _, ok := roster.FindByID("missing"); ok {
		t.Fatal("expected missing coach lookup to fail")
	}
	if _, ok := roster.FindByID(" gentle-guide "); !ok {
		t.Fatal("expected lookup to ignore surrounding spaces")
	}
}

func TestNewRosterRejectsBadIDs(t *testing.T) {
	if _, err := NewRoster([]Coach{{ID: "  "}}); err == nil {
		t.Fatal("expected blank id to be rejected")
	}
	if _, err := NewRoster([]Coach{{ID: "a"}, {ID: " a"}}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestRosterResolveFallsBackToDefault(t *testing.T) {
	roster, err := NewRoster(Seed())
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	for id, want := range map[string]string{
		"straight-talker": "straight-talker",
		"":                DefaultID,
		"unknown":         DefaultID,
	} {
		got, err := roster.Resolve(id)
		if err != nil {
			t.Fatalf("resolve %q: %v", id, err)
		}
		if got.ID != want {
			t.Fatalf("resolve %q: got %q, want %q", id, got.ID, want)
		}
	}

	empty, err := NewRoster(nil)
	if err != nil {
		t.Fatalf("new empty roster: %v", err)
	}
	if _, err := empty.Resolve("unknown"); !errors.Is(err, ErrNoCoach) {
		t.Fatalf("expected ErrNoCoach, got %v", err)
	}
}
