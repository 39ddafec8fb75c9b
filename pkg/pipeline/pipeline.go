// Package pipeline sequences one voice interaction: transcription, safety
// gating, reply generation with model fallback, speech synthesis, and
// persistence. The orchestrator is the sole failure-recovery boundary; stage
// implementations let errors propagate upward.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playmatelabs/go-playmate/pkg/conversation"
	"github.com/playmatelabs/go-playmate/pkg/llm"
	"github.com/playmatelabs/go-playmate/pkg/profile"
	"github.com/playmatelabs/go-playmate/pkg/redirect"
	"github.com/playmatelabs/go-playmate/pkg/safety"
	"github.com/playmatelabs/go-playmate/pkg/stt"
	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// Fixed user-facing strings. The pipeline must always hand the device some
// utterance, so these stand in when generation or the whole pipeline fails.
const (
	// ReassuranceText replaces a generated reply that failed the
	// post-generation safety check.
	ReassuranceText = "You know what, let's talk about something else! What's the best part of your day so far?"

	// ApologyText is spoken when the pipeline hits an unrecovered failure.
	ApologyText = "Oops! My ears got a little tangled. Can you say that again?"
)

// Synthesizer resolves a named TTS provider. *tts.Registry satisfies this.
type Synthesizer interface {
	Resolve(name string) (tts.Provider, error)
}

// Config holds the orchestrator's tunables.
type Config struct {
	// PrimaryModel and FallbackModel select generation models.
	PrimaryModel  string
	FallbackModel string

	// BatchModels is the ordered candidate list batch execution iterates
	// instead of the primary/fallback retry pair. Empty derives
	// [PrimaryModel, FallbackModel].
	BatchModels []string

	// MaxTokens bounds each generated reply.
	MaxTokens int

	// Language is the fixed transcription language hint.
	Language string

	// DefaultVoiceID voices error-recovery apologies for toys whose
	// profile can't be read.
	DefaultVoiceID string

	// TTSDisabled globally disables synthesis (including apologies).
	TTSDisabled bool

	// AllowUnauthenticatedTest substitutes a stub profile for unknown
	// toys instead of failing. Test/sandbox escape hatch; production
	// deployments leave this off.
	AllowUnauthenticatedTest bool

	// Logger for pipeline events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs the voice-interaction pipeline.
type Orchestrator struct {
	profiles   profile.Store
	transcribe stt.Provider
	dispatcher *llm.Dispatcher
	synth      Synthesizer
	recorder   conversation.Recorder
	redirects  *redirect.Responder
	cfg        Config
	logger     *slog.Logger
}

// New creates an Orchestrator with explicit dependencies. Nothing is
// global: every provider handle is injected so tests can run against fakes.
func New(
	profiles profile.Store,
	transcriber stt.Provider,
	dispatcher *llm.Dispatcher,
	synth Synthesizer,
	recorder conversation.Recorder,
	redirects *redirect.Responder,
	cfg Config,
) *Orchestrator {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = llm.DefaultPrimaryModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = llm.DefaultFallbackModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		profiles:   profiles,
		transcribe: transcriber,
		dispatcher: dispatcher,
		synth:      synth,
		recorder:   recorder,
		redirects:  redirects,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "pipeline"),
	}
}

// Run processes one interaction end to end. It never returns an error:
// every internal failure is converted into a degraded Result.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	sandbox := req.Mode == ModeSandbox

	// LOAD_PROFILE
	toy, err := o.loadProfile(ctx, req, &sandbox)
	if err != nil {
		return o.recover(ctx, req, nil, fmt.Errorf("load profile: %w", err), start)
	}

	// TRANSCRIBE
	transcription, err := o.transcribe.Transcribe(ctx, req.Audio, stt.TranscribeOptions{
		Language: o.cfg.Language,
		Format:   audioFormat(req.Meta),
	})
	if err != nil {
		return o.recover(ctx, req, toy, fmt.Errorf("transcribe: %w", err), start)
	}

	userMeta := conversation.SafetyMetadata{SafetyScore: 1}

	// PRECHECK (kids only)
	if toy.IsForKids {
		verdict := safety.Classify(transcription.Text, safety.LevelStrict)
		userMeta = metadataFrom(verdict)
		if !verdict.Passed {
			return o.redirectTerminal(ctx, req, toy, transcription, verdict, sandbox, start)
		}
	}

	// GENERATE
	generated, err := o.generate(ctx, req, o.buildMessages(toy, transcription.Text))
	if err != nil {
		return o.recover(ctx, req, toy, fmt.Errorf("generate: %w", err), start)
	}

	replyText := generated.Text
	toyMeta := conversation.SafetyMetadata{SafetyScore: 1}

	// POSTCHECK (kids only). A blocked reply never aborts the pipeline:
	// the fixed reassurance text is substituted and processing continues.
	if toy.IsForKids {
		verdict := safety.Classify(replyText, safety.LevelStrict)
		if !verdict.Passed {
			o.logger.Warn("generated reply failed post-check, substituting reassurance",
				"toy_id", toy.ToyID,
				"reason", verdict.Reason,
				"severity", verdict.Severity,
			)
			replyText = ReassuranceText
		}
	}

	// SYNTHESIZE
	audioData, audioFmt, err := o.synthesizeReply(ctx, req, toy, replyText, sandbox)
	if err != nil {
		return o.recover(ctx, req, toy, fmt.Errorf("synthesize: %w", err), start)
	}

	// PERSIST
	var conversationID string
	if !sandbox {
		conversationID, err = o.persistTurns(ctx, req, transcription.Text, userMeta, replyText, toyMeta)
		if err != nil {
			return o.recover(ctx, req, toy, fmt.Errorf("persist: %w", err), start)
		}
	}

	return Result{
		ID:             req.ID,
		Success:        true,
		Transcription:  transcription,
		Text:           replyText,
		ModelUsed:      generated.Model,
		AudioData:      audioData,
		AudioFormat:    audioFmt,
		ConversationID: conversationID,
		ProcessingTime: time.Since(start),
	}
}

// loadProfile fetches the toy profile, substituting the sandbox stub when
// allowed. A missing profile in authenticated mode is fatal.
func (o *Orchestrator) loadProfile(ctx context.Context, req Request, sandbox *bool) (*profile.Profile, error) {
	if *sandbox {
		return profile.SandboxProfile(), nil
	}

	toy, err := o.profiles.Get(ctx, req.ToyID)
	if err != nil {
		if err == profile.ErrNotFound && o.cfg.AllowUnauthenticatedTest {
			o.logger.Info("unknown toy, substituting sandbox profile",
				"toy_id", req.ToyID,
			)
			*sandbox = true
			return profile.SandboxProfile(), nil
		}
		return nil, err
	}
	return toy, nil
}

// redirectTerminal handles a blocked pre-check: build the canned reply,
// persist both turns, and return a successful terminal result.
func (o *Orchestrator) redirectTerminal(ctx context.Context, req Request, toy *profile.Profile, transcription *stt.Transcription, verdict safety.Verdict, sandbox bool, start time.Time) Result {
	o.logger.Info("input blocked by safety pre-check",
		"toy_id", toy.ToyID,
		"reason", verdict.Reason,
		"severity", verdict.Severity,
	)

	// The redirect branch obeys the same audio suppression as generated
	// replies: the speech provider must not see SkipTTS, sandbox, or
	// disabled-TTS interactions.
	var resp *redirect.Response
	if req.SkipTTS || sandbox || o.cfg.TTSDisabled {
		resp = o.redirects.BuildText(verdict.Reason)
	} else {
		resp = o.redirects.Build(ctx, verdict.Reason, toy.VoiceID, toy.VoiceSettings)
	}

	var conversationID string
	if !sandbox {
		var err error
		conversationID, err = o.persistTurns(ctx, req,
			transcription.Text, metadataFrom(verdict),
			resp.Text, conversation.SafetyMetadata{SafetyScore: 1},
		)
		if err != nil {
			return o.recover(ctx, req, toy, fmt.Errorf("persist redirect: %w", err), start)
		}
	}

	return Result{
		ID:             req.ID,
		Success:        true,
		SafetyRedirect: true,
		Transcription:  transcription,
		Text:           resp.Text,
		AudioData:      base64.StdEncoding.EncodeToString(resp.Audio),
		AudioFormat:    resp.Format,
		ConversationID: conversationID,
		ProcessingTime: time.Since(start),
	}
}

// generate selects the model strategy: a per-request override keeps the
// single-retry contract, batch requests iterate their candidate list, and
// everything else uses the configured primary/fallback pair.
func (o *Orchestrator) generate(ctx context.Context, req Request, messages []llm.Message) (*llm.Response, error) {
	if req.ModelOverride != "" {
		return o.dispatcher.Generate(ctx, messages, req.ModelOverride, o.cfg.FallbackModel, o.cfg.MaxTokens)
	}
	if len(req.candidates) > 0 {
		return o.dispatcher.GenerateWithCandidates(ctx, messages, req.candidates, o.cfg.MaxTokens)
	}
	return o.dispatcher.Generate(ctx, messages, o.cfg.PrimaryModel, o.cfg.FallbackModel, o.cfg.MaxTokens)
}

// synthesizeReply voices the reply unless the caller streams audio itself
// (SkipTTS) or the interaction runs in sandbox mode.
func (o *Orchestrator) synthesizeReply(ctx context.Context, req Request, toy *profile.Profile, text string, sandbox bool) (string, string, error) {
	if req.SkipTTS || sandbox || o.cfg.TTSDisabled {
		return "", FormatSkipped, nil
	}

	provider, err := o.synth.Resolve(toy.TTSProvider)
	if err != nil {
		return "", "", err
	}

	result, err := provider.Synthesize(ctx, tts.SpeechRequest{
		Text:     text,
		VoiceID:  toy.VoiceID,
		Settings: toy.VoiceSettings,
	})
	if err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(result.Audio), string(result.Format.Encoding), nil
}

// persistTurns stores the user turn then the toy turn with safety metadata.
func (o *Orchestrator) persistTurns(ctx context.Context, req Request, userText string, userMeta conversation.SafetyMetadata, toyText string, toyMeta conversation.SafetyMetadata) (string, error) {
	conversationID, err := o.recorder.GetOrCreate(ctx, req.ToyID, req.DeviceID, req.SessionID)
	if err != nil {
		return "", err
	}
	if _, err := o.recorder.AppendMessage(ctx, conversationID, conversation.RoleUser, userText, userMeta); err != nil {
		return "", err
	}
	if _, err := o.recorder.AppendMessage(ctx, conversationID, conversation.RoleToy, toyText, toyMeta); err != nil {
		return "", err
	}
	return conversationID, nil
}

// buildMessages assembles the generation context from the toy's personality.
func (o *Orchestrator) buildMessages(toy *profile.Profile, userText string) []llm.Message {
	var system strings.Builder
	system.WriteString(toy.PersonalityPrompt)
	if toy.VoiceTone != "" {
		system.WriteString("\nSpeak in a " + toy.VoiceTone + " tone.")
	}
	if len(toy.Interests) > 0 {
		system.WriteString("\nYou especially love talking about " + strings.Join(toy.Interests, ", ") + ".")
	}
	if toy.IsForKids {
		system.WriteString("\nYour audience is a young child. Keep replies short, simple, and always age-appropriate.")
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: userText},
	}
}

// recover converts any stage failure into a degraded result with a fixed
// apology, voiced best-effort. This path must not itself fail the caller.
func (o *Orchestrator) recover(ctx context.Context, req Request, toy *profile.Profile, err error, start time.Time) Result {
	o.logger.Error("pipeline failed",
		"toy_id", req.ToyID,
		"session_id", req.SessionID,
		"error", err,
	)

	result := Result{
		ID:             req.ID,
		Success:        false,
		Text:           ApologyText,
		AudioFormat:    FormatSkipped,
		Error:          err.Error(),
		ProcessingTime: time.Since(start),
	}

	if o.cfg.TTSDisabled || req.SkipTTS || o.synth == nil {
		return result
	}

	// Best-effort apology audio. The profile is re-fetched defensively in
	// case the failure happened before LOAD_PROFILE completed; a fetch
	// failure here is swallowed and the default voice is used.
	voiceID := o.cfg.DefaultVoiceID
	var settings *tts.VoiceSettings
	providerName := ""
	if toy == nil && o.profiles != nil {
		toy, _ = o.profiles.Get(ctx, req.ToyID)
	}
	if toy != nil {
		if toy.VoiceID != "" {
			voiceID = toy.VoiceID
		}
		settings = toy.VoiceSettings
		providerName = toy.TTSProvider
	}

	provider, perr := o.synth.Resolve(providerName)
	if perr != nil {
		return result
	}

	audio, serr := provider.Synthesize(ctx, tts.SpeechRequest{
		Text:     ApologyText,
		VoiceID:  voiceID,
		Settings: settings,
	})
	if serr != nil {
		o.logger.Warn("apology synthesis failed", "error", serr)
		return result
	}

	result.AudioData = base64.StdEncoding.EncodeToString(audio.Audio)
	result.AudioFormat = string(audio.Format.Encoding)
	return result
}

// metadataFrom converts a safety verdict into message metadata.
func metadataFrom(v safety.Verdict) conversation.SafetyMetadata {
	meta := conversation.SafetyMetadata{
		Flagged:     !v.Passed,
		SafetyScore: v.Score,
	}
	if v.Reason != "" {
		meta.SafetyFlags = append(meta.SafetyFlags, v.Reason)
	}
	meta.SafetyFlags = append(meta.SafetyFlags, v.Matches...)
	return meta
}

// audioFormat extracts the container format hint from request metadata.
func audioFormat(meta *AudioMeta) string {
	if meta == nil {
		return ""
	}
	return meta.Format
}
