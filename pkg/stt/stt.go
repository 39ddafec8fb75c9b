// Package stt provides a unified interface for speech-to-text providers.
//
// The package supports OpenAI Whisper as the default backend. All providers
// implement the Provider interface, enabling seamless switching without
// changing caller code.
//
// Example usage:
//
//	provider := stt.NewWhisper(stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	result, _ := provider.Transcribe(ctx, audioBytes, stt.TranscribeOptions{Language: "en"})
//	// result.Text contains the transcript
package stt

import (
	"context"
	"math"
	"time"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts audio to text with per-segment confidence data.
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcription, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// TranscribeOptions controls a single transcription request.
type TranscribeOptions struct {
	// Language is an ISO-639-1 language hint (e.g. "en").
	Language string

	// Format is the container format of the audio payload (e.g. "wav", "webm").
	// Defaults to "webm" when empty.
	Format string

	// Prompt optionally biases the decoder toward expected vocabulary.
	Prompt string
}

// Transcription is the result of a speech-to-text request.
type Transcription struct {
	// Text is the full transcript.
	Text string

	// Language is the detected (or hinted) language.
	Language string

	// Duration is the audio duration reported by the provider.
	Duration time.Duration

	// Segments holds per-segment timing and confidence data.
	Segments []Segment

	// Confidence is the aggregate transcript confidence in [0, 1],
	// derived from the mean average log-probability across segments.
	Confidence float64
}

// Segment is one decoded span of audio.
type Segment struct {
	ID           int
	Start        float64
	End          float64
	Text         string
	AvgLogProb   float64
	NoSpeechProb float64
}

// ConfidenceFromSegments derives an aggregate confidence in [0, 1] from
// per-segment average log-probabilities. The mean log-probability is
// exponentiated back into probability space and clamped.
func ConfidenceFromSegments(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}

	var sum float64
	for _, s := range segments {
		sum += s.AvgLogProb
	}
	mean := sum / float64(len(segments))

	conf := math.Exp(mean)
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
