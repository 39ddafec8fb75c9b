// Package profile defines toy profiles and the store the pipeline reads
// them from. Profiles are owned externally; the pipeline treats them as
// read-only for the duration of one interaction.
package profile

import (
	"context"
	"errors"

	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// ErrNotFound is returned when no profile exists for a toy ID.
var ErrNotFound = errors.New("profile: toy not found")

// Profile describes one toy's voice and personality configuration.
type Profile struct {
	// ToyID uniquely identifies the toy.
	ToyID string `json:"toy_id"`

	// Name is the toy's display name.
	Name string `json:"name"`

	// VoiceID selects the synthesis voice.
	VoiceID string `json:"voice_id"`

	// IsForKids enables pre- and post-generation safety gating.
	IsForKids bool `json:"is_for_kids"`

	// PersonalityPrompt is the system prompt defining the toy's character.
	PersonalityPrompt string `json:"personality_prompt"`

	// VoiceTone is a short style hint appended to the personality prompt.
	VoiceTone string `json:"voice_tone"`

	// Interests lists topics the toy steers conversation toward.
	Interests []string `json:"interests"`

	// TTSProvider names the preferred synthesis provider ("elevenlabs",
	// "openai"). Empty uses the default.
	TTSProvider string `json:"tts_provider"`

	// VoiceSettings tunes the synthesis voice. Nil uses provider defaults.
	VoiceSettings *tts.VoiceSettings `json:"voice_settings,omitempty"`
}

// Store is the read interface over the toy-profile collection.
type Store interface {
	// Get returns the profile for a toy, or ErrNotFound.
	Get(ctx context.Context, toyID string) (*Profile, error)
}

// SandboxToyID identifies the stub profile used for unauthenticated smoke
// tests.
const SandboxToyID = "sandbox-toy"

// SandboxProfile returns the stub profile substituted for unauthenticated
// test callers. It is kids-safe and uses the default voice.
func SandboxProfile() *Profile {
	return &Profile{
		ToyID:             SandboxToyID,
		Name:              "Sandbox Bear",
		IsForKids:         true,
		PersonalityPrompt: "You are a friendly teddy bear who loves chatting with kids. Keep replies short, warm, and curious.",
		VoiceTone:         "warm and playful",
		Interests:         []string{"stories", "animals", "space"},
	}
}
