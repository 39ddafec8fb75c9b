// playmate-server: voice interaction service for the toy fleet.
// Accepts audio uploads, runs the interaction pipeline, and pushes live
// events to dashboard clients.
package main

import (
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/playmatelabs/go-playmate/internal/config"
	"github.com/playmatelabs/go-playmate/internal/log"
	"github.com/playmatelabs/go-playmate/pkg/conversation"
	"github.com/playmatelabs/go-playmate/pkg/llm"
	"github.com/playmatelabs/go-playmate/pkg/pipeline"
	"github.com/playmatelabs/go-playmate/pkg/profile"
	"github.com/playmatelabs/go-playmate/pkg/redirect"
	"github.com/playmatelabs/go-playmate/pkg/stt"
	"github.com/playmatelabs/go-playmate/pkg/tts"
	"github.com/playmatelabs/go-playmate/pkg/web"
)

var version = "1.0.0"

var (
	port         = flag.String("port", "", "HTTP server port (overrides PORT)")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	profilesPath = flag.String("profiles", "", "Path to toy profiles JSON file")
	storePath    = flag.String("store", "conversations.json", "Path to conversation store file")
	concurrency  = flag.Int("batch-concurrency", 0, "Max parallel batch interactions (0 = default)")
	batchModels  = flag.String("batch-models", "", "Comma-separated candidate models for batch generation")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	log.Info("playmate-server starting", "version", version)

	httpPort := config.Port()
	if *port != "" {
		httpPort = *port
	}

	// Toy profiles
	var profiles profile.Store
	if *profilesPath != "" {
		store, err := profile.LoadFile(*profilesPath)
		if err != nil {
			log.Error("failed to load profiles", "path", *profilesPath, "error", err)
			os.Exit(1)
		}
		profiles = store
	} else {
		log.Warn("no profiles file given, all toys will be unknown")
		profiles = profile.NewMemoryStore()
	}

	// Speech-to-text
	transcriber, err := stt.NewWhisper(
		stt.WithAPIKey(config.OpenAIKey()),
		stt.WithLogger(log.L()),
	)
	if err != nil {
		log.Error("failed to create transcriber", "error", err)
		os.Exit(1)
	}
	defer transcriber.Close()

	// Reply generation
	generator, err := llm.NewOpenRouter(
		llm.WithAPIKey(config.OpenRouterKey()),
		llm.WithLogger(log.L()),
	)
	if err != nil {
		log.Error("failed to create generator", "error", err)
		os.Exit(1)
	}
	defer generator.Close()
	dispatcher := llm.NewDispatcherWithLogger(generator, log.L())

	// Speech synthesis: ElevenLabs first, OpenAI as fallback, resolved per
	// toy by provider name.
	registry := tts.NewRegistry()
	defer registry.Close()
	ttsDisabled := config.TTSDisabled() || !config.TTSConfigured()
	if ttsDisabled {
		log.Warn("speech synthesis disabled", "reason", "no credentials or explicitly disabled")
	} else {
		registerSynthesis(registry)
	}

	// Conversation persistence
	recorder, err := conversation.NewJSONStore(config.ConversationStorePath(*storePath))
	if err != nil {
		log.Error("failed to open conversation store", "error", err)
		os.Exit(1)
	}

	// Safety redirects voiced with the default synthesis provider
	var redirectSynth tts.Provider
	if !ttsDisabled {
		redirectSynth, _ = registry.Default()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	redirects := redirect.NewWithLogger(redirectSynth, rng, log.L())

	orchestrator := pipeline.New(profiles, transcriber, dispatcher, registry, recorder, redirects, pipeline.Config{
		BatchModels:              splitList(*batchModels),
		DefaultVoiceID:           config.DefaultVoiceID,
		TTSDisabled:              ttsDisabled,
		AllowUnauthenticatedTest: config.AllowUnauthenticatedTest(),
		Logger:                   log.L(),
	})
	batch := pipeline.NewBatchRunner(orchestrator, *concurrency)

	// Low-latency first-chunk variant, available when ElevenLabs streaming
	// is configured.
	var streaming *pipeline.Streaming
	if !ttsDisabled && config.ElevenLabsKey() != "" {
		chunker, err := tts.NewElevenLabsWS(
			tts.WithAPIKey(config.ElevenLabsKey()),
			tts.WithDefaultVoice(config.DefaultVoiceID),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			log.Warn("streaming synthesis unavailable", "error", err)
		} else {
			streaming = pipeline.NewStreaming(profiles, transcriber, dispatcher, chunker, pipeline.Config{
				Logger: log.L(),
			})
		}
	}

	server := web.NewServer(httpPort, orchestrator, batch, streaming)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// registerSynthesis wires the available synthesis providers into the
// registry. Each provider is registered by name, and a fallback chain
// becomes the default when more than one is configured.
func registerSynthesis(registry *tts.Registry) {
	var chainable []tts.Provider

	if key := config.ElevenLabsKey(); key != "" {
		el, err := tts.NewElevenLabs(
			tts.WithAPIKey(key),
			tts.WithDefaultVoice(config.DefaultVoiceID),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			log.Warn("elevenlabs unavailable", "error", err)
		} else {
			registry.Register("elevenlabs", el)
			chainable = append(chainable, el)
		}
	}

	if key := config.OpenAIKey(); key != "" {
		oa, err := tts.NewOpenAI(
			tts.WithAPIKey(key),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			log.Warn("openai tts unavailable", "error", err)
		} else {
			registry.Register("openai", oa)
			chainable = append(chainable, oa)
		}
	}

	if len(chainable) > 1 {
		chain, err := tts.NewChainWithLogger(log.L(), chainable...)
		if err == nil {
			registry.Register("chain", chain)
			registry.SetDefault("chain")
		}
	}
}
