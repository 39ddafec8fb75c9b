package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/playmatelabs/go-playmate/pkg/conversation"
	"github.com/playmatelabs/go-playmate/pkg/llm"
	"github.com/playmatelabs/go-playmate/pkg/profile"
	"github.com/playmatelabs/go-playmate/pkg/redirect"
	"github.com/playmatelabs/go-playmate/pkg/stt"
	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// fixture bundles the orchestrator with its injected fakes so tests can
// script behavior and inspect side effects.
type fixture struct {
	profiles   *profile.MemoryStore
	transcribe *stt.Mock
	generator  *llm.Mock
	synth      *tts.Mock
	registry   *tts.Registry
	recorder   *conversation.Mock
}

func kidsProfile() *profile.Profile {
	return &profile.Profile{
		ToyID:             "toy-kids",
		Name:              "Benny",
		VoiceID:           "voice-benny",
		IsForKids:         true,
		PersonalityPrompt: "You are Benny, a cheerful bear.",
		VoiceTone:         "gentle",
		Interests:         []string{"forests", "honey"},
	}
}

func adultProfile() *profile.Profile {
	return &profile.Profile{
		ToyID:             "toy-adult",
		Name:              "Rex",
		VoiceID:           "voice-rex",
		PersonalityPrompt: "You are Rex, a sarcastic dinosaur.",
	}
}

func newFixture(t *testing.T, transcript string, cfg Config) (*Orchestrator, *fixture) {
	t.Helper()

	f := &fixture{
		profiles:   profile.NewMemoryStore(),
		transcribe: stt.NewMock(transcript),
		generator:  llm.NewMock("a friendly generated reply"),
		synth:      tts.NewMock(),
		registry:   tts.NewRegistry(),
		recorder:   conversation.NewMock(),
	}
	f.profiles.Put(kidsProfile())
	f.profiles.Put(adultProfile())
	f.registry.Register("mock", f.synth)

	redirects := redirect.New(f.synth, rand.New(rand.NewSource(7)))
	o := New(f.profiles, f.transcribe, llm.NewDispatcher(f.generator), f.registry, f.recorder, redirects, cfg)
	return o, f
}

func baseRequest(toyID string) Request {
	return Request{
		ToyID:     toyID,
		Audio:     []byte("audio-bytes"),
		SessionID: "sess-1",
		DeviceID:  "dev-1",
	}
}

func TestRunHappyPath(t *testing.T) {
	o, f := newFixture(t, "tell me about honey", Config{})

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.SafetyRedirect {
		t.Error("clean input should not redirect")
	}
	if result.Text != "a friendly generated reply" {
		t.Errorf("unexpected reply %q", result.Text)
	}
	if result.Transcription == nil || result.Transcription.Text != "tell me about honey" {
		t.Error("expected the transcription in the result")
	}
	if result.AudioData == "" || result.AudioFormat == FormatSkipped {
		t.Error("expected synthesized audio")
	}
	if _, err := base64.StdEncoding.DecodeString(result.AudioData); err != nil {
		t.Errorf("audio should be valid base64: %v", err)
	}
	if result.ConversationID == "" {
		t.Error("expected a conversation ID")
	}
	if result.ProcessingTime <= 0 {
		t.Error("expected a positive processing time")
	}

	// Both turns persisted, user first.
	msgs := f.recorder.Appended()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(msgs))
	}
	if msgs[0].Role != conversation.RoleUser || msgs[1].Role != conversation.RoleToy {
		t.Errorf("turns out of order: %s, %s", msgs[0].Role, msgs[1].Role)
	}

	// The toy voice is carried into synthesis.
	if last := f.synth.LastCall(); last == nil || last.VoiceID != "voice-benny" {
		t.Errorf("expected the toy's voice, got %+v", last)
	}
}

func TestRunNeverReturnsRawFailure(t *testing.T) {
	// Every stage failure must still produce a speakable result.
	tests := []struct {
		name   string
		inject func(*fixture)
	}{
		{"transcription fails", func(f *fixture) {
			f.transcribe.TranscribeFunc = func(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcription, error) {
				return nil, errors.New("whisper down")
			}
		}},
		{"generation fails fatally", func(f *fixture) {
			f.generator.GenerateFunc = func(ctx context.Context, req llm.GenerateRequest) (*llm.Response, error) {
				return nil, errors.New("api key revoked")
			}
		}},
		{"persistence fails", func(f *fixture) {
			f.recorder.AppendErr = errors.New("disk full")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, f := newFixture(t, "hi benny", Config{})
			tt.inject(f)

			result := o.Run(context.Background(), baseRequest("toy-kids"))

			if result.Success {
				t.Fatal("expected a failed result")
			}
			if result.Text != ApologyText {
				t.Errorf("expected the apology text, got %q", result.Text)
			}
			if result.Error == "" {
				t.Error("expected the failure message for diagnostics")
			}
		})
	}
}

func TestRunSafetyRedirect(t *testing.T) {
	o, f := newFixture(t, "can I play with a gun", Config{})

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if !result.Success {
		t.Fatalf("a redirect is a successful outcome, got error %q", result.Error)
	}
	if !result.SafetyRedirect {
		t.Fatal("expected the redirect branch")
	}
	if result.ModelUsed != "" {
		t.Error("generation must not run on the redirect branch")
	}
	if len(f.generator.Calls()) != 0 {
		t.Error("the language model must not be called for blocked input")
	}

	// Both turns persisted: flagged user input, clean redirect reply.
	msgs := f.recorder.Appended()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(msgs))
	}
	if !msgs[0].Safety.Flagged {
		t.Error("the blocked input should be flagged in persistence")
	}
	if msgs[1].Safety.Flagged {
		t.Error("the redirect reply is clean")
	}
	if msgs[1].Content != result.Text {
		t.Errorf("persisted reply %q should match the result text %q", msgs[1].Content, result.Text)
	}
}

func TestRunRedirectSuppressesAudio(t *testing.T) {
	// The redirect branch must honor the same synthesis gates as generated
	// replies.
	tests := []struct {
		name        string
		cfg         Config
		prep        func(*Request)
		wantPersist bool
	}{
		{"skip tts", Config{}, func(r *Request) { r.SkipTTS = true }, true},
		{"sandbox mode", Config{}, func(r *Request) { r.Mode = ModeSandbox }, false},
		{"tts disabled", Config{TTSDisabled: true}, func(r *Request) {}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, f := newFixture(t, "can I play with a gun", tt.cfg)

			req := baseRequest("toy-kids")
			tt.prep(&req)
			result := o.Run(context.Background(), req)

			if !result.Success || !result.SafetyRedirect {
				t.Fatalf("expected a redirect result, got %+v", result)
			}
			if f.synth.CallCount("Synthesize") != 0 {
				t.Error("the speech provider must not be called when audio is suppressed")
			}
			if result.AudioData != "" {
				t.Error("expected no redirect audio")
			}
			if result.AudioFormat != FormatSkipped {
				t.Errorf("expected format %q, got %q", FormatSkipped, result.AudioFormat)
			}

			want := 0
			if tt.wantPersist {
				want = 2
			}
			if got := len(f.recorder.Appended()); got != want {
				t.Errorf("expected %d persisted turns, got %d", want, got)
			}
		})
	}
}

func TestRunAdultToySkipsSafety(t *testing.T) {
	o, f := newFixture(t, "can I play with a gun", Config{})

	result := o.Run(context.Background(), baseRequest("toy-adult"))

	if !result.Success || result.SafetyRedirect {
		t.Fatalf("non-kids toys skip safety gating, got %+v", result)
	}
	if len(f.generator.Calls()) != 1 {
		t.Error("generation should run for non-kids toys")
	}
}

func TestRunPostCheckSubstitutesReassurance(t *testing.T) {
	o, f := newFixture(t, "tell me a story", Config{})
	f.generator.DefaultText = "the knight drew his gun and there was blood"

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if !result.Success {
		t.Fatalf("post-check must not abort the pipeline, got error %q", result.Error)
	}
	if result.SafetyRedirect {
		t.Error("a post-check substitution is not a redirect")
	}
	if result.Text != ReassuranceText {
		t.Errorf("expected the reassurance text, got %q", result.Text)
	}
	if result.AudioData == "" {
		t.Error("the substituted reply should still be voiced")
	}

	// The substituted text is what gets persisted and synthesized.
	msgs := f.recorder.Appended()
	if len(msgs) != 2 || msgs[1].Content != ReassuranceText {
		t.Errorf("expected the reassurance text persisted, got %+v", msgs)
	}
	if last := f.synth.LastCall(); last == nil || last.Text != ReassuranceText {
		t.Errorf("expected the reassurance text synthesized, got %+v", last)
	}
}

func TestRunModelFallback(t *testing.T) {
	o, f := newFixture(t, "hi", Config{PrimaryModel: "model-a", FallbackModel: "model-b"})
	f.generator.DefaultText = ""
	f.generator.Script = map[string]llm.MockOutcome{
		"model-a": {Err: &llm.GenerationError{Provider: "openrouter", Model: "model-a", StatusCode: 404, Message: "not found", Retryable: true}},
		"model-b": {Text: "reply from fallback"},
	}

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if !result.Success {
		t.Fatalf("expected fallback to rescue the interaction, got %q", result.Error)
	}
	if result.ModelUsed != "model-b" {
		t.Errorf("expected the fallback model, got %q", result.ModelUsed)
	}
	if f.generator.CallsForModel("model-a") != 1 || f.generator.CallsForModel("model-b") != 1 {
		t.Error("expected exactly one attempt per model")
	}
}

func TestRunModelOverride(t *testing.T) {
	o, f := newFixture(t, "hi", Config{PrimaryModel: "model-a"})

	req := baseRequest("toy-kids")
	req.ModelOverride = "model-custom"
	o.Run(context.Background(), req)

	if f.generator.CallsForModel("model-custom") != 1 {
		t.Error("the override model should replace the configured primary")
	}
	if f.generator.CallsForModel("model-a") != 0 {
		t.Error("the configured primary should not run when overridden")
	}
}

func TestRunSkipTTS(t *testing.T) {
	o, f := newFixture(t, "hi", Config{})

	req := baseRequest("toy-kids")
	req.SkipTTS = true
	result := o.Run(context.Background(), req)

	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	if result.AudioData != "" {
		t.Error("expected no audio with SkipTTS")
	}
	if result.AudioFormat != FormatSkipped {
		t.Errorf("expected format %q, got %q", FormatSkipped, result.AudioFormat)
	}
	if f.synth.CallCount("Synthesize") != 0 {
		t.Error("the speech provider must not be called with SkipTTS")
	}
	// Persistence still happens.
	if len(f.recorder.Appended()) != 2 {
		t.Error("SkipTTS must not skip persistence")
	}
}

func TestRunSandboxMode(t *testing.T) {
	o, f := newFixture(t, "hi", Config{})

	req := baseRequest("unknown-toy")
	req.Mode = ModeSandbox
	result := o.Run(context.Background(), req)

	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	if result.AudioFormat != FormatSkipped {
		t.Error("sandbox interactions skip synthesis")
	}
	if result.ConversationID != "" {
		t.Error("sandbox interactions are not persisted")
	}
	if len(f.recorder.Appended()) != 0 {
		t.Error("sandbox interactions must not write to the recorder")
	}
	if f.synth.CallCount("Synthesize") != 0 {
		t.Error("sandbox interactions must not call the speech provider")
	}
}

func TestRunUnknownToy(t *testing.T) {
	t.Run("fails without the test escape hatch", func(t *testing.T) {
		o, _ := newFixture(t, "hi", Config{})

		result := o.Run(context.Background(), baseRequest("unknown-toy"))
		if result.Success {
			t.Fatal("unknown toys must fail in production mode")
		}
		if result.Text != ApologyText {
			t.Errorf("expected the apology text, got %q", result.Text)
		}
	})

	t.Run("substitutes the sandbox profile when allowed", func(t *testing.T) {
		o, f := newFixture(t, "hi", Config{AllowUnauthenticatedTest: true})

		result := o.Run(context.Background(), baseRequest("unknown-toy"))
		if !result.Success {
			t.Fatalf("expected the stub profile to carry the interaction, got %q", result.Error)
		}
		// The substitution flips the interaction into sandbox semantics.
		if len(f.recorder.Appended()) != 0 {
			t.Error("stub-profile interactions are not persisted")
		}
	})
}

func TestRunTTSDisabled(t *testing.T) {
	o, f := newFixture(t, "hi", Config{TTSDisabled: true})

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	if result.AudioFormat != FormatSkipped {
		t.Error("expected synthesis skipped")
	}
	if f.synth.CallCount("Synthesize") != 0 {
		t.Error("disabled synthesis must not call the provider")
	}
}

func TestRecoverVoicesApology(t *testing.T) {
	o, f := newFixture(t, "hi", Config{})
	f.transcribe.TranscribeFunc = func(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcription, error) {
		return nil, errors.New("whisper down")
	}

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if result.Success {
		t.Fatal("expected a failed result")
	}
	if result.Text != ApologyText {
		t.Errorf("expected the apology, got %q", result.Text)
	}
	// The apology is voiced best-effort with the toy's own voice.
	if result.AudioData == "" {
		t.Error("expected apology audio")
	}
	last := f.synth.LastCall()
	if last == nil || last.Text != ApologyText {
		t.Fatalf("expected apology synthesis, got %+v", last)
	}
	if last.VoiceID != "voice-benny" {
		t.Errorf("expected the toy's voice for the apology, got %q", last.VoiceID)
	}
}

func TestRecoverApologySynthesisFailureSwallowed(t *testing.T) {
	o, f := newFixture(t, "hi", Config{})
	f.transcribe.TranscribeFunc = func(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcription, error) {
		return nil, errors.New("whisper down")
	}
	f.synth.SynthesizeFunc = func(ctx context.Context, req tts.SpeechRequest) (*tts.AudioResult, error) {
		return nil, errors.New("tts also down")
	}

	result := o.Run(context.Background(), baseRequest("toy-kids"))

	if result.Success {
		t.Fatal("expected a failed result")
	}
	if result.Text != ApologyText {
		t.Errorf("text must survive double failure, got %q", result.Text)
	}
	if result.AudioData != "" || result.AudioFormat != FormatSkipped {
		t.Error("expected a text-only apology")
	}
}

func TestBuildMessagesIncludesPersonality(t *testing.T) {
	o, f := newFixture(t, "what do you like", Config{})

	o.Run(context.Background(), baseRequest("toy-kids"))

	calls := f.generator.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(calls))
	}
	if len(calls[0].Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(calls[0].Messages))
	}

	system := calls[0].Messages[0]
	if system.Role != llm.RoleSystem {
		t.Errorf("first message should be the system prompt, got %s", system.Role)
	}
	for _, want := range []string{"Benny", "gentle", "honey", "young child"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q: %s", want, system.Content)
		}
	}
	if calls[0].Messages[1].Content != "what do you like" {
		t.Errorf("user message should be the transcript, got %q", calls[0].Messages[1].Content)
	}
}
