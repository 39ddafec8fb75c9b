package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/playmatelabs/go-playmate/pkg/llm"
	"github.com/playmatelabs/go-playmate/pkg/profile"
	"github.com/playmatelabs/go-playmate/pkg/stt"
	"github.com/playmatelabs/go-playmate/pkg/tts"
)

// mockChunker scripts the first-chunk synthesis step.
type mockChunker struct {
	chunk []byte
	err   error
	calls []tts.SpeechRequest
}

func (m *mockChunker) FirstChunk(ctx context.Context, req tts.SpeechRequest) ([]byte, tts.AudioFormat, error) {
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, tts.AudioFormat{}, m.err
	}
	return m.chunk, tts.AudioFormat{Encoding: tts.EncodingPCM24, SampleRate: 24000}, nil
}

func newStreamFixture(t *testing.T, chunker FirstChunker) (*Streaming, *profile.MemoryStore) {
	t.Helper()

	profiles := profile.NewMemoryStore()
	profiles.Put(kidsProfile())

	s := NewStreaming(profiles, stt.NewMock("hello benny"), llm.NewDispatcher(llm.NewMock("a quick reply")), chunker, Config{})
	return s, profiles
}

func TestStreamingRun(t *testing.T) {
	chunker := &mockChunker{chunk: []byte("first-audio-chunk")}
	s, _ := newStreamFixture(t, chunker)

	result, err := s.Run(context.Background(), baseRequest("toy-kids"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Text != "a quick reply" {
		t.Errorf("unexpected reply %q", result.Text)
	}
	if result.Transcription == nil || result.Transcription.Text != "hello benny" {
		t.Error("expected the transcription")
	}

	decoded, err := base64.StdEncoding.DecodeString(result.FirstAudio)
	if err != nil || string(decoded) != "first-audio-chunk" {
		t.Errorf("expected the first chunk base64-encoded, got %q", result.FirstAudio)
	}
	if result.AudioFormat != string(tts.EncodingPCM24) {
		t.Errorf("unexpected format %q", result.AudioFormat)
	}

	// Synthesis uses the toy's voice.
	if len(chunker.calls) != 1 || chunker.calls[0].VoiceID != "voice-benny" {
		t.Errorf("expected one first-chunk call with the toy voice, got %+v", chunker.calls)
	}
}

func TestStreamingChunkFailureIsNonFatal(t *testing.T) {
	chunker := &mockChunker{err: errors.New("socket closed")}
	s, _ := newStreamFixture(t, chunker)

	result, err := s.Run(context.Background(), baseRequest("toy-kids"))
	if err != nil {
		t.Fatalf("first-chunk failure must not fail the run: %v", err)
	}
	if result.Text != "a quick reply" {
		t.Errorf("the text reply stands, got %q", result.Text)
	}
	if result.FirstAudio != "" {
		t.Error("expected no audio")
	}
	if result.AudioFormat != FormatSkipped {
		t.Errorf("expected format %q, got %q", FormatSkipped, result.AudioFormat)
	}
}

func TestStreamingSkipTTS(t *testing.T) {
	chunker := &mockChunker{chunk: []byte("x")}
	s, _ := newStreamFixture(t, chunker)

	req := baseRequest("toy-kids")
	req.SkipTTS = true
	result, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chunker.calls) != 0 {
		t.Error("SkipTTS must bypass first-chunk synthesis")
	}
	if result.FirstAudio != "" || result.AudioFormat != FormatSkipped {
		t.Error("expected no audio")
	}
}

func TestStreamingErrorsPropagate(t *testing.T) {
	t.Run("unknown toy", func(t *testing.T) {
		s, _ := newStreamFixture(t, &mockChunker{})
		if _, err := s.Run(context.Background(), baseRequest("unknown")); err == nil {
			t.Error("the streaming path surfaces errors to the caller")
		}
	})

	t.Run("transcription failure", func(t *testing.T) {
		profiles := profile.NewMemoryStore()
		profiles.Put(kidsProfile())
		s := NewStreaming(profiles, stt.WithError(errors.New("whisper down")), llm.NewDispatcher(llm.NewMock("x")), &mockChunker{}, Config{})

		if _, err := s.Run(context.Background(), baseRequest("toy-kids")); err == nil {
			t.Error("expected the transcription error")
		}
	})
}

func TestStreamingSandboxProfile(t *testing.T) {
	chunker := &mockChunker{chunk: []byte("x")}
	s, _ := newStreamFixture(t, chunker)

	req := baseRequest("nobody")
	req.Mode = ModeSandbox
	result, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("sandbox mode should use the stub profile: %v", err)
	}
	if result.Text == "" {
		t.Error("expected a reply")
	}
}
