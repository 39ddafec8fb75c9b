package web

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/playmatelabs/go-playmate/pkg/hub"
	"github.com/playmatelabs/go-playmate/pkg/pipeline"
)

// interactRequest is the wire form of one interaction submission. Audio
// travels base64-encoded inside JSON.
type interactRequest struct {
	ID            string `json:"id,omitempty"`
	ToyID         string `json:"toy_id"`
	Audio         string `json:"audio"`
	SessionID     string `json:"session_id"`
	DeviceID      string `json:"device_id"`
	ModelOverride string `json:"model_override,omitempty"`
	SkipTTS       bool   `json:"skip_tts,omitempty"`
	Sandbox       bool   `json:"sandbox,omitempty"`
	AudioFormat   string `json:"audio_format,omitempty"`
}

// toPipeline decodes the wire form into a pipeline request.
func (r *interactRequest) toPipeline() (pipeline.Request, error) {
	if r.ToyID == "" && !r.Sandbox {
		return pipeline.Request{}, fmt.Errorf("toy_id is required")
	}
	if r.Audio == "" {
		return pipeline.Request{}, fmt.Errorf("audio is required")
	}

	audio, err := base64.StdEncoding.DecodeString(r.Audio)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("audio is not valid base64: %w", err)
	}

	mode := pipeline.ModeProduction
	if r.Sandbox {
		mode = pipeline.ModeSandbox
	}

	req := pipeline.Request{
		ID:            r.ID,
		ToyID:         r.ToyID,
		Audio:         audio,
		SessionID:     r.SessionID,
		DeviceID:      r.DeviceID,
		ModelOverride: r.ModelOverride,
		SkipTTS:       r.SkipTTS,
		Mode:          mode,
	}
	if r.AudioFormat != "" {
		req.Meta = &pipeline.AudioMeta{Format: r.AudioFormat}
	}
	return req, nil
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleInteract runs one voice interaction and returns the aggregate result.
func (s *Server) handleInteract(c *fiber.Ctx) error {
	var body interactRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	req, err := body.toPipeline()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result := s.orchestrator.Run(c.Context(), req)
	s.publishResult(req, result)

	return c.JSON(result)
}

// handleInteractBatch runs up to maxBatchSize interactions concurrently and
// returns one result per request in submission order.
func (s *Server) handleInteractBatch(c *fiber.Ctx) error {
	var body struct {
		Requests []interactRequest `json:"requests"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if len(body.Requests) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "requests is empty")
	}
	if len(body.Requests) > maxBatchSize {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("batch too large: %d requests, max %d", len(body.Requests), maxBatchSize))
	}

	requests := make([]pipeline.Request, len(body.Requests))
	for i := range body.Requests {
		req, err := body.Requests[i].toPipeline()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("request %d: %v", i, err))
		}
		requests[i] = req
	}

	results := s.batch.Run(c.Context(), requests)
	for i := range results {
		s.publishResult(requests[i], results[i])
	}

	return c.JSON(fiber.Map{"results": results})
}

// handleInteractStream runs the low-latency variant: the full text reply
// plus only the first audio chunk. Unlike /api/interact this surfaces
// errors to the caller, who owns retry on the streaming path.
func (s *Server) handleInteractStream(c *fiber.Ctx) error {
	if s.streaming == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "streaming synthesis is not configured")
	}

	var body interactRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	req, err := body.toPipeline()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := s.streaming.Run(c.Context(), req)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(result)
}

// handlePrewarm warms the providers for a toy and returns immediately.
func (s *Server) handlePrewarm(c *fiber.Ctx) error {
	toyID := c.Params("toyId")
	if toyID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "toyId is required")
	}

	// Detached from the request context: the response does not wait for
	// the providers.
	go s.orchestrator.Prewarm(context.Background(), toyID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "warming"})
}

// publishResult pushes one interaction event to dashboard clients.
func (s *Server) publishResult(req pipeline.Request, result pipeline.Result) {
	kind := "interaction"
	switch {
	case result.SafetyRedirect:
		kind = "redirect"
	case !result.Success:
		kind = "error"
	}

	event := hub.NewEvent(kind, req.ToyID)
	event.SessionID = req.SessionID
	event.Reply = result.Text
	event.Model = result.ModelUsed
	event.Flagged = result.SafetyRedirect
	event.ProcessingMs = result.ProcessingTime.Milliseconds()
	event.Error = result.Error
	event.ConversationID = result.ConversationID
	if result.Transcription != nil {
		event.Transcript = result.Transcription.Text
		event.Confidence = result.Transcription.Confidence
	}

	s.eventsHub.BroadcastEvent(event)
}
