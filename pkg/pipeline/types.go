package pipeline

import (
	"time"

	"github.com/playmatelabs/go-playmate/pkg/stt"
)

// ExecutionMode selects the production or sandbox path explicitly, instead
// of deriving it from ambient environment state.
type ExecutionMode string

const (
	// ModeProduction runs the full pipeline: real profile, synthesis,
	// persistence.
	ModeProduction ExecutionMode = "production"

	// ModeSandbox stubs the toy profile and skips synthesis and
	// persistence, for unauthenticated smoke testing.
	ModeSandbox ExecutionMode = "sandbox"
)

// FormatSkipped is the audio format tag when no synthesis occurred.
const FormatSkipped = "skipped"

// AudioMeta carries optional metadata about the uploaded audio.
type AudioMeta struct {
	// Timestamp is when the audio was captured.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Duration is the capture length.
	Duration time.Duration `json:"duration,omitempty"`

	// Format is the container format (e.g. "wav", "webm").
	Format string `json:"format,omitempty"`
}

// Request is the immutable input for one voice interaction.
type Request struct {
	// ID identifies the request in batch results. Optional for single
	// interactions.
	ID string `json:"id,omitempty"`

	// ToyID identifies the toy profile to load.
	ToyID string `json:"toy_id"`

	// Audio is the raw audio payload.
	Audio []byte `json:"audio"`

	// SessionID groups turns into one conversation.
	SessionID string `json:"session_id"`

	// DeviceID identifies the physical toy device.
	DeviceID string `json:"device_id"`

	// ModelOverride replaces the configured primary model when set.
	ModelOverride string `json:"model_override,omitempty"`

	// SkipTTS indicates the caller synthesizes audio itself; the pipeline
	// must not call the speech provider.
	SkipTTS bool `json:"skip_tts,omitempty"`

	// Mode selects production or sandbox execution. Empty means production.
	Mode ExecutionMode `json:"mode,omitempty"`

	// Meta optionally describes the audio payload.
	Meta *AudioMeta `json:"meta,omitempty"`

	// candidates is the ordered model list for batch execution, set by
	// BatchRunner. Never part of the wire form.
	candidates []string
}

// Result is the single aggregate returned per request. The pipeline never
// surfaces raw errors; failures arrive as Success=false with Error set.
type Result struct {
	// ID echoes Request.ID.
	ID string `json:"id,omitempty"`

	// Success is false only when the pipeline hit an unrecovered failure.
	// Safety redirects are successful results.
	Success bool `json:"success"`

	// SafetyRedirect marks the pre-check terminal branch.
	SafetyRedirect bool `json:"safety_redirect,omitempty"`

	// Transcription is the speech-to-text result, when reached.
	Transcription *stt.Transcription `json:"transcription,omitempty"`

	// Text is the toy's reply (generated, redirect, or apology).
	Text string `json:"text"`

	// ModelUsed is the language model that actually produced the reply.
	ModelUsed string `json:"model_used,omitempty"`

	// AudioData is the base64-encoded reply audio, empty when skipped.
	AudioData string `json:"audio_data"`

	// AudioFormat tags the audio encoding, or "skipped".
	AudioFormat string `json:"audio_format"`

	// ConversationID is set when the interaction was persisted.
	ConversationID string `json:"conversation_id,omitempty"`

	// ProcessingTime is the total pipeline wall time.
	ProcessingTime time.Duration `json:"processing_time"`

	// Error carries the raw failure message for diagnostics.
	Error string `json:"error,omitempty"`
}
