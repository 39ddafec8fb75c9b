package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playmatelabs/go-playmate/pkg/llm"
	"github.com/playmatelabs/go-playmate/pkg/profile"
	"github.com/playmatelabs/go-playmate/pkg/stt"
	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// FirstChunker synthesizes only the first audio chunk of an utterance.
// *tts.ElevenLabsWS satisfies this.
type FirstChunker interface {
	FirstChunk(ctx context.Context, req tts.SpeechRequest) ([]byte, tts.AudioFormat, error)
}

// StreamResult is the partial result returned by the streaming variant:
// the full reply text plus only the first audio chunk, so the device can
// start playback before the rest of the reply is rendered.
type StreamResult struct {
	Transcription  *stt.Transcription `json:"transcription,omitempty"`
	Text           string             `json:"text"`
	ModelUsed      string             `json:"model_used,omitempty"`
	FirstAudio     string             `json:"first_audio,omitempty"` // base64
	AudioFormat    string             `json:"audio_format,omitempty"`
	ProcessingTime time.Duration      `json:"processing_time"`
}

// Streaming is the low-latency pipeline variant. It is not used by the
// default interaction path; it trades completeness for time-to-first-audio
// and leaves persistence to the caller.
type Streaming struct {
	profiles   profile.Store
	transcribe stt.Provider
	dispatcher *llm.Dispatcher
	chunker    FirstChunker
	cfg        Config
	logger     *slog.Logger
}

// NewStreaming creates the streaming variant.
func NewStreaming(profiles profile.Store, transcriber stt.Provider, dispatcher *llm.Dispatcher, chunker FirstChunker, cfg Config) *Streaming {
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

	return &Streaming{
		profiles:   profiles,
		transcribe: transcriber,
		dispatcher: dispatcher,
		chunker:    chunker,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "pipeline.stream"),
	}
}

// Run transcribes and loads the toy profile concurrently, generates the
// reply, then synthesizes only the first available chunk for immediate
// playback. Unlike Orchestrator.Run this returns errors: the caller owns
// recovery on the streaming path.
func (s *Streaming) Run(ctx context.Context, req Request) (*StreamResult, error) {
	start := time.Now()

	var (
		transcription *stt.Transcription
		toy           *profile.Profile
	)

	// Transcription and the TTS-settings prewarm (profile fetch) overlap.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transcription, err = s.transcribe.Transcribe(gctx, req.Audio, stt.TranscribeOptions{
			Language: s.cfg.Language,
			Format:   audioFormat(req.Meta),
		})
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if req.Mode == ModeSandbox {
			toy = profile.SandboxProfile()
			return nil
		}
		var err error
		toy, err = s.profiles.Get(gctx, req.ToyID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	primary := s.cfg.PrimaryModel
	if req.ModelOverride != "" {
		primary = req.ModelOverride
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: toy.PersonalityPrompt},
		{Role: llm.RoleUser, Content: transcription.Text},
	}
	generated, err := s.dispatcher.Generate(ctx, messages, primary, s.cfg.FallbackModel, s.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	result := &StreamResult{
		Transcription: transcription,
		Text:          generated.Text,
		ModelUsed:     generated.Model,
		AudioFormat:   FormatSkipped,
	}

	if !req.SkipTTS && s.chunker != nil {
		chunk, format, err := s.chunker.FirstChunk(ctx, tts.SpeechRequest{
			Text:     generated.Text,
			VoiceID:  toy.VoiceID,
			Settings: toy.VoiceSettings,
		})
		if err != nil {
			// First-chunk audio is an optimization; the text reply stands.
			s.logger.Warn("first-chunk synthesis failed", "error", err)
		} else {
			result.FirstAudio = base64.StdEncoding.EncodeToString(chunk)
			result.AudioFormat = string(format.Encoding)
		}
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}
