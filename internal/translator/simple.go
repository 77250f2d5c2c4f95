package translator

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// translateSimple is the non-context fallback path used when context-aware
// batching is disabled: one line per call, bounded-concurrency and paced
// with a token-bucket limiter so a long cue list doesn't burst the whole
// batch at the upstream provider at once (spec.md §4.6 "simple mode"),
// grounded on the rate.Limiter.Wait-per-call pattern used by the pack's
// subtitle-translate reference.
func (t *Translator) translateSimple(ctx context.Context, cues []codec.Cue, sourceLang, targetLang string) ([]string, error) {
	out := make([]string, len(cues))

	concurrency := t.cfg.SimpleConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	waveDelay := time.Duration(t.cfg.SimpleWaveDelayMs) * time.Millisecond
	if t.cfg.SimpleWaveDelayMs == 0 {
		waveDelay = 200 * time.Millisecond
	}

	// A burst of `concurrency` calls may fire immediately; the bucket then
	// refills so that a further `concurrency` calls are admitted every
	// waveDelay, matching the "wave" pacing the config knobs describe.
	limiter := rate.NewLimiter(rate.Limit(float64(concurrency)/waveDelay.Seconds()), concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range cues {
		i := i
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			// The simple path has no guidance pass of its own (spec.md §4.6
			// "Simple (non-context) path" describes no summary/glossary
			// input), unlike the batch fallback which carries the guidance
			// already produced for the context-aware path.
			tr, err := t.translateSingleLine(gctx, sourceLang, targetLang, "", nil, cues[i].Text)
			if err != nil {
				log.Printf("translator: simple-mode translation failed for index %d, using original text: %v", i, err)
				out[i] = cues[i].Text
				return nil
			}
			out[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
