package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"

// ElevenLabsWS synthesizes one utterance per WebSocket session for lowest
// time-to-first-chunk. The streaming interaction path uses FirstChunk to get
// audio playing while the rest of the reply is still rendering.
type ElevenLabsWS struct {
	config *Config
	logger *slog.Logger
}

// NewElevenLabsWS creates a WebSocket-based ElevenLabs streaming client.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.OutputFormat = EncodingPCM24
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ElevenLabsWS{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.elevenlabs_ws"),
	}, nil
}

// wsMessage mirrors the stream-input response frames.
type wsMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
}

// FirstChunk synthesizes req and returns only the first audio chunk.
// The session is torn down as soon as the chunk arrives; the caller plays it
// immediately while a regular Synthesize renders the full reply.
func (e *ElevenLabsWS) FirstChunk(ctx context.Context, req SpeechRequest) ([]byte, AudioFormat, error) {
	format := e.config.resolveFormat(req)

	conn, err := e.dial(ctx, req)
	if err != nil {
		return nil, AudioFormat{}, err
	}
	defer conn.Close()

	// Text in one shot, then end-of-stream.
	if err := conn.WriteJSON(map[string]interface{}{"text": req.Text + " "}); err != nil {
		return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("send text: %w", err))
	}
	if err := conn.WriteJSON(map[string]interface{}{"text": ""}); err != nil {
		return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("send EOS: %w", err))
	}

	deadline := time.Now().Add(e.config.StreamTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("read frame: %w", err))
		}

		var frame wsMessage
		if err := json.Unmarshal(message, &frame); err != nil {
			e.logger.Warn("failed to parse frame", "error", err)
			continue
		}
		if frame.Error != "" {
			return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("stream error: %s", frame.Error))
		}
		if frame.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("decode audio: %w", err))
			}
			return audio, outputFormatFor(format), nil
		}
		if frame.IsFinal {
			return nil, AudioFormat{}, WrapError(providerElevenLabs, fmt.Errorf("stream ended without audio"))
		}
	}
}

// dial opens the stream-input session and sends the BOS frame carrying the
// request's voice settings.
func (e *ElevenLabsWS) dial(ctx context.Context, req SpeechRequest) (*websocket.Conn, error) {
	voice := e.config.resolveVoice(req)
	if voice == "" {
		return nil, WrapError(providerElevenLabs, ErrNoVoiceID)
	}

	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		elevenLabsWSBaseURL, voice, e.config.ModelID, e.config.resolveFormat(req))

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial failed: %w", err))
	}

	settings := e.config.resolveSettings(req)
	bos := map[string]interface{}{
		"text": " ", // Space to initialize
		"voice_settings": map[string]interface{}{
			"stability":        settings.Stability,
			"similarity_boost": settings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290}, // Optimized for low latency
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabs, fmt.Errorf("send BOS: %w", err))
	}

	e.logger.Debug("websocket session opened", "voice", voice, "model", e.config.ModelID)
	return conn, nil
}
