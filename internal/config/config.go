// Package config provides environment configuration helpers for go-playmate.
package config

import (
	"os"
	"strconv"
)

// Default service configuration.
const (
	DefaultPort        = "8080"
	DefaultVoiceID     = "pNInz6obpgDQGcFmaJgB"
	DefaultSTTLanguage = "en"
)

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// ElevenLabsKey returns the ElevenLabs API key from ELEVENLABS_API_KEY.
func ElevenLabsKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

// OpenRouterKey returns the OpenRouter API key from OPENROUTER_API_KEY.
func OpenRouterKey() string {
	return os.Getenv("OPENROUTER_API_KEY")
}

// TTSDisabled reports whether speech synthesis is globally disabled
// via PLAYMATE_TTS_DISABLED.
func TTSDisabled() bool {
	v, _ := strconv.ParseBool(os.Getenv("PLAYMATE_TTS_DISABLED"))
	return v
}

// TTSConfigured reports whether any speech-synthesis credential is present.
func TTSConfigured() bool {
	return ElevenLabsKey() != "" || OpenAIKey() != ""
}

// AllowUnauthenticatedTest reports whether unauthenticated callers may run
// sandbox interactions against a stub toy profile. Production deployments
// leave this unset.
func AllowUnauthenticatedTest() bool {
	v, _ := strconv.ParseBool(os.Getenv("PLAYMATE_ALLOW_UNAUTH_TEST"))
	return v
}

// Port returns the HTTP port from PORT or the default.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// ConversationStorePath returns the conversation store file path from
// PLAYMATE_STORE_PATH or the provided default.
func ConversationStorePath(defaultPath string) string {
	if p := os.Getenv("PLAYMATE_STORE_PATH"); p != "" {
		return p
	}
	return defaultPath
}
