package stt

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfidenceFromSegments(t *testing.T) {
	t.Run("empty segments", func(t *testing.T) {
		if got := ConfidenceFromSegments(nil); got != 0 {
			t.Errorf("expected 0 for no segments, got %f", got)
		}
	})

	t.Run("single segment", func(t *testing.T) {
		got := ConfidenceFromSegments([]Segment{{AvgLogProb: -0.5}})
		want := math.Exp(-0.5)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("expected %f, got %f", want, got)
		}
	})

	t.Run("mean across segments", func(t *testing.T) {
		segments := []Segment{{AvgLogProb: -0.2}, {AvgLogProb: -0.4}, {AvgLogProb: -0.6}}
		want := math.Exp(-0.4)
		got := ConfidenceFromSegments(segments)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("expected %f, got %f", want, got)
		}
	})

	t.Run("clamped to one", func(t *testing.T) {
		// A positive log-probability would exponentiate past 1.
		if got := ConfidenceFromSegments([]Segment{{AvgLogProb: 0.5}}); got != 1 {
			t.Errorf("expected clamp to 1, got %f", got)
		}
	})

	t.Run("perfect segments", func(t *testing.T) {
		if got := ConfidenceFromSegments([]Segment{{AvgLogProb: 0}}); got != 1 {
			t.Errorf("expected 1 for zero log-prob, got %f", got)
		}
	})
}

func TestNewWhisperRequiresKey(t *testing.T) {
	if _, err := NewWhisper(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestWhisperTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != ModelWhisper1 {
			t.Errorf("expected model %s, got %s", ModelWhisper1, got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("expected verbose_json, got %s", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("expected language en, got %s", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"text":     "hello world",
			"language": "en",
			"duration": 2.5,
			"segments": []map[string]any{
				{"id": 0, "start": 0.0, "end": 2.5, "text": "hello world", "avg_logprob": -0.25, "no_speech_prob": 0.01},
			},
		})
	}))
	defer server.Close()

	w, err := NewWhisper(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}
	defer w.Close()

	result, err := w.Transcribe(context.Background(), []byte("fake-audio"), TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if result.Text != "hello world" {
		t.Errorf("expected transcript, got %q", result.Text)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(result.Segments))
	}
	want := math.Exp(-0.25)
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %f, got %f", want, result.Confidence)
	}
	if result.Duration.Seconds() != 2.5 {
		t.Errorf("expected 2.5s duration, got %v", result.Duration)
	}
}

func TestWhisperTranscribeEmptyAudio(t *testing.T) {
	w, err := NewWhisper(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	if _, err := w.Transcribe(context.Background(), nil, TranscribeOptions{}); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestWhisperTranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Incorrect API key provided"},
		})
	}))
	defer server.Close()

	w, err := NewWhisper(WithAPIKey("bad-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	_, err = w.Transcribe(context.Background(), []byte("audio"), TranscribeOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Incorrect API key provided" {
		t.Errorf("expected parsed message, got %q", apiErr.Message)
	}
}

func TestWhisperHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/"+ModelWhisper1 {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := NewWhisper(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewWhisper: %v", err)
	}

	if err := w.Health(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
}

func TestMockTracking(t *testing.T) {
	m := NewMock("test words")

	result, err := m.Transcribe(context.Background(), []byte("abc"), TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "test words" {
		t.Errorf("expected fixed transcript, got %q", result.Text)
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("confidence out of range: %f", result.Confidence)
	}

	if got := m.CallCount("Transcribe"); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
	if calls := m.Calls(); len(calls) != 1 || calls[0].Bytes != 3 {
		t.Errorf("unexpected call record: %+v", calls)
	}
}
