package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIVoiceMapping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{VoiceNova, VoiceNova},
		{VoiceOnyx, VoiceOnyx},
		{"pNInz6obpgDQGcFmaJgB", VoiceShimmer},
		{"", VoiceShimmer},
	}

	for _, tt := range tests {
		if got := openAIVoiceFor(tt.in); got != tt.want {
			t.Errorf("openAIVoiceFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenAISynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var payload struct {
			Model string `json:"model"`
			Voice string `json:"voice"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != ModelTTS1 {
			t.Errorf("expected model %s, got %s", ModelTTS1, payload.Model)
		}
		// ElevenLabs-style voice IDs map onto a built-in voice.
		if payload.Voice != VoiceShimmer {
			t.Errorf("expected voice mapped to shimmer, got %s", payload.Voice)
		}
		if payload.Input != "story time" {
			t.Errorf("expected input text, got %q", payload.Input)
		}

		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	o, err := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer o.Close()

	result, err := o.Synthesize(context.Background(), SpeechRequest{
		Text:    "story time",
		VoiceID: "eleven-voice-id-xyz",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Error("audio bytes mismatch")
	}
	if result.Format.Encoding != EncodingMP3 {
		t.Errorf("expected mp3, got %s", result.Format.Encoding)
	}
}

func TestOpenAIStreamBuffersSynthesis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("buffered-audio"))
	}))
	defer server.Close()

	o, _ := NewOpenAI(WithAPIKey("k"), WithBaseURL(server.URL))

	stream, err := o.Stream(context.Background(), SpeechRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "buffered-audio" {
		t.Errorf("unexpected chunk %q", chunk)
	}

	// Stream is exhausted after the single buffered chunk.
	if next, _ := stream.Read(); next != nil {
		t.Error("expected nil after the buffer is drained")
	}
}
