package pipeline

import (
	"context"
	"sync"
	"time"
)

// prewarmTimeout bounds the whole prewarm pass.
const prewarmTimeout = 5 * time.Second

// Prewarm fires a minimal request at each provider to reduce first-call
// latency for a toy that is about to interact. Errors are swallowed
// entirely: prewarming is a pure optimization with no observable contract.
func (o *Orchestrator) Prewarm(ctx context.Context, toyID string) {
	ctx, cancel := context.WithTimeout(ctx, prewarmTimeout)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.profiles != nil {
			_, _ = o.profiles.Get(ctx, toyID)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.transcribe != nil {
			_ = o.transcribe.Health(ctx)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.dispatcher != nil {
			_ = o.dispatcher.Health(ctx)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.synth != nil {
			if provider, err := o.synth.Resolve(""); err == nil {
				_ = provider.Health(ctx)
			}
		}
	}()

	wg.Wait()
	o.logger.Debug("prewarm complete", "toy_id", toyID)
}
