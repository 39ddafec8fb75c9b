// Package redirect builds safe, pre-written toy replies substituted when the
// safety classifier blocks a child's input. A redirect is a normal, successful
// pipeline outcome, distinct from error recovery.
package redirect

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/playmatelabs/go-playmate/pkg/safety"
	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// FormatSkipped marks a redirect whose audio could not be synthesized.
const FormatSkipped = "skipped"

// Canned phrasings per reason bucket. Category blocks share one bucket;
// personal information gets its own; everything else falls to generic.
var (
	contentPhrases = []string{
		"Hmm, let's talk about something else! What's your favorite animal?",
		"That's not something I know about. Want to hear a fun fact instead?",
		"Let's play a different game! Can you guess what sound a dolphin makes?",
	}

	personalInfoPhrases = []string{
		"Let's keep that a secret between you and your grown-ups! What else should we chat about?",
		"I don't need to know that, silly! Tell me about your day instead.",
	}

	genericPhrases = []string{
		"Let's talk about something fun! What makes you happy?",
		"How about a story instead? Once upon a time...",
	}
)

// Response is a complete redirect reply.
type Response struct {
	// Text is the chosen canned phrase.
	Text string

	// Reason is the safety reason code that triggered the redirect.
	Reason string

	// Audio is the synthesized phrase, empty when synthesis was skipped
	// or failed.
	Audio []byte

	// Format is the audio format tag, or FormatSkipped.
	Format string
}

// Responder selects and voices redirect phrases.
type Responder struct {
	synth  tts.Provider
	rng    *rand.Rand
	logger *slog.Logger
}

// New creates a Responder. rng may be nil, in which case the global source
// is used; tests inject a seeded source for deterministic phrase choice.
func New(synth tts.Provider, rng *rand.Rand) *Responder {
	return &Responder{
		synth:  synth,
		rng:    rng,
		logger: slog.Default().With("component", "redirect"),
	}
}

// NewWithLogger creates a Responder with a custom logger.
func NewWithLogger(synth tts.Provider, rng *rand.Rand, logger *slog.Logger) *Responder {
	r := New(synth, rng)
	r.logger = logger.With("component", "redirect")
	return r
}

// Build chooses a phrase for the reason and synthesizes it with the toy's
// voice. Synthesis failure degrades to a text-only redirect; it never fails
// the interaction.
func (r *Responder) Build(ctx context.Context, reason, voiceID string, settings *tts.VoiceSettings) *Response {
	resp := r.BuildText(reason)

	if r.synth == nil {
		return resp
	}

	result, err := r.synth.Synthesize(ctx, tts.SpeechRequest{
		Text:     resp.Text,
		VoiceID:  voiceID,
		Settings: settings,
	})
	if err != nil {
		r.logger.Warn("redirect synthesis failed, returning text only",
			"reason", reason,
			"error", err,
		)
		return resp
	}

	resp.Audio = result.Audio
	resp.Format = string(result.Format.Encoding)
	return resp
}

// BuildText chooses a phrase without voicing it, for interactions whose
// audio is suppressed: caller-side synthesis, sandbox runs, disabled TTS.
func (r *Responder) BuildText(reason string) *Response {
	return &Response{
		Text:   r.choose(phrasesFor(reason)),
		Reason: reason,
		Format: FormatSkipped,
	}
}

// Phrases returns the canned phrase bucket for a reason code.
// Exposed so tests can assert redirect text membership.
func Phrases(reason string) []string {
	bucket := phrasesFor(reason)
	out := make([]string, len(bucket))
	copy(out, bucket)
	return out
}

// phrasesFor maps a safety reason code to its phrase bucket.
func phrasesFor(reason string) []string {
	switch reason {
	case safety.ReasonViolence, safety.ReasonHate, safety.ReasonSubstances,
		safety.ReasonAdultContent, safety.ReasonRiskTaking:
		return contentPhrases
	case safety.ReasonPersonalInfo:
		return personalInfoPhrases
	default:
		return genericPhrases
	}
}

// choose picks uniformly from a bucket.
func (r *Responder) choose(bucket []string) string {
	if len(bucket) == 1 {
		return bucket[0]
	}
	if r.rng != nil {
		return bucket[r.rng.Intn(len(bucket))]
	}
	return bucket[rand.Intn(len(bucket))]
}
