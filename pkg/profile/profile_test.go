package profile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	t.Run("missing toy", func(t *testing.T) {
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("put and get", func(t *testing.T) {
		store.Put(&Profile{ToyID: "toy-1", Name: "Benny", VoiceID: "v1", IsForKids: true})

		p, err := store.Get(ctx, "toy-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if p.Name != "Benny" || !p.IsForKids {
			t.Errorf("unexpected profile %+v", p)
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		p, _ := store.Get(ctx, "toy-1")
		p.Name = "mutated"

		again, _ := store.Get(ctx, "toy-1")
		if again.Name != "Benny" {
			t.Error("mutating a returned profile must not affect the store")
		}
	})
}

func TestSandboxProfile(t *testing.T) {
	p := SandboxProfile()
	if p.ToyID != SandboxToyID {
		t.Errorf("unexpected toy ID %q", p.ToyID)
	}
	if !p.IsForKids {
		t.Error("the sandbox profile must be kids-safe")
	}
	if p.PersonalityPrompt == "" {
		t.Error("the sandbox profile needs a personality prompt")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "profiles.json")
		profiles := []*Profile{
			{ToyID: "toy-1", Name: "Benny", IsForKids: true},
			{ToyID: "toy-2", Name: "Rex"},
		}
		data, _ := json.Marshal(profiles)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}

		store, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		p, err := store.Get(context.Background(), "toy-2")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if p.Name != "Rex" {
			t.Errorf("unexpected profile %+v", p)
		}
	})

	t.Run("missing toy id", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte(`[{"name":"NoID"}]`), 0644)
		if _, err := LoadFile(path); err == nil {
			t.Error("expected an error for a profile without toy_id")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "nope.json")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})
}
