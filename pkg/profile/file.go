package profile

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON array of profiles and returns a memory store seeded
// with them. Profiles missing a toy ID are rejected.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var profiles []*Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	store := NewMemoryStore()
	for i, p := range profiles {
		if p.ToyID == "" {
			return nil, fmt.Errorf("profile %d: missing toy_id", i)
		}
		store.Put(p)
	}
	return store, nil
}
