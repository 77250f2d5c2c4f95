// Package worker is the long-running job consumer: it drains an in-process
// job channel, enforces the pending/translating/done/failed state machine,
// and performs the full success-path pipeline (fetch → segment → translate
// → render) per spec.md §4.7.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
	"github.com/double-tu/youtube-subtitle-proxy/internal/fetcher"
	"github.com/double-tu/youtube-subtitle-proxy/internal/middleware"
	"github.com/double-tu/youtube-subtitle-proxy/internal/segmenter"
	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
	"github.com/double-tu/youtube-subtitle-proxy/internal/translator"
)

// Job is one unit of work enqueued by the request dispatcher (C8): a pending
// row already written to the store, plus enough upstream context to redo
// (or resume) the fetch without another round trip through the dispatcher.
type Job struct {
	JobID      string
	Key        store.RequestKey
	SourceHash string
	FetchParam fetcher.Params
	SourceLang string
}

// Pool is the bounded-concurrency worker pool described in spec.md §4.7.
// It is grounded on the teacher's FillHandler/FillJob producer-consumer
// shape: a buffered channel, a fixed set of worker goroutines, and an
// in-memory set guarding against re-processing the same unit of work.
type Pool struct {
	store      *store.Store
	cache      *cache.Cache
	fetcher    *fetcher.Fetcher
	translator *translator.Translator
	segParams  segmenter.Params
	overlapGap int

	concurrency int
	maxRetries  int
	retryBaseMs int64

	jobs chan Job

	mu       sync.Mutex
	inFlight map[string]bool

	wg sync.WaitGroup
}

// Config holds the knobs from internal/config.Config that shape the pool.
type Config struct {
	Concurrency  int
	MaxRetries   int
	RetryBaseMs  int64
	SegParams    segmenter.Params
	OverlapGapMs int
}

// New builds a Pool. Call Start to begin consuming jobs.
func New(st *store.Store, c *cache.Cache, f *fetcher.Fetcher, tr *translator.Translator, cfg Config) *Pool {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Pool{
		store:       st,
		cache:       c,
		fetcher:     f,
		translator:  tr,
		segParams:   cfg.SegParams,
		overlapGap:  cfg.OverlapGapMs,
		concurrency: concurrency,
		maxRetries:  cfg.MaxRetries,
		retryBaseMs: cfg.RetryBaseMs,
		jobs:        make(chan Job, concurrency*4),
		inFlight:    make(map[string]bool),
	}
}

func inFlightKey(key store.RequestKey, sourceHash string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s", key.VideoID, key.Lang, key.TargetLang, key.Track, key.Fmt, sourceHash)
}

// TryEnqueue offers job to the pool, deduplicating against the in-memory
// in-flight set keyed by (RequestKey, sourceHash) per spec.md §4.7
// "Picking." It returns false if an identical unit of work is already
// in-flight, in which case the caller must not create a second job row.
func (p *Pool) TryEnqueue(job Job) bool {
	k := inFlightKey(job.Key, job.SourceHash)

	p.mu.Lock()
	if p.inFlight[k] {
		p.mu.Unlock()
		return false
	}
	p.inFlight[k] = true
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return true
	default:
		// Queue saturated: drop the in-flight marker so a future request can
		// retry the enqueue instead of being silently blocked forever.
		p.mu.Lock()
		delete(p.inFlight, k)
		p.mu.Unlock()
		log.Printf("worker: job queue full, dropping enqueue for %s", job.JobID)
		return false
	}
}

// Start launches the worker goroutines. Once ctx is cancelled, workers stop
// picking up new jobs; a job already being processed runs to completion, and
// Stop waits for it without a time limit.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Stop closes the job channel and waits for in-flight workers to finish
// their current job (spec.md §4.9 "a short drain window").
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// run drains jobs until the channel closes. A job already being processed
// is never aborted by ctx cancellation — each external call inside it
// carries its own timeout (spec.md §5 "Cancellation and timeouts") — ctx
// only gates whether a *new* job is picked up, so shutdown stops intake
// without truncating work in progress.
func (p *Pool) run(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(context.Background(), job)
			p.mu.Lock()
			delete(p.inFlight, inFlightKey(job.Key, job.SourceHash))
			p.mu.Unlock()
		}
	}
}

// process runs the full success/failure path for one job (spec.md §4.7).
func (p *Pool) process(ctx context.Context, job Job) {
	if err := p.store.MarkTranslating(job.JobID); err != nil {
		log.Printf("worker: failed to mark job %s translating: %v", job.JobID, err)
		return
	}

	bilingual, err := p.translate(ctx, job)
	if err != nil {
		p.fail(job, err)
		return
	}

	if err := p.store.MarkDone(job.JobID, bilingual); err != nil {
		log.Printf("worker: failed to mark job %s done: %v", job.JobID, err)
		return
	}
	middleware.RecordTranslationJob(store.StatusDone)
	p.cache.Set(job.Key, bilingual)
}

func (p *Pool) translate(ctx context.Context, job Job) (string, error) {
	result, err := p.fetcher.Fetch(ctx, job.FetchParam)
	if err != nil {
		return "", fmt.Errorf("upstream fetch: %w", err)
	}

	segmented := segmenter.Segment(result.Cues, p.segParams)
	optimized := segmenter.OptimizeTiming(segmented)

	translated, err := p.translator.Translate(ctx, optimized, job.SourceLang, job.Key.TargetLang)
	if err != nil {
		return "", fmt.Errorf("translation: %w", err)
	}

	c, err := codec.For(codec.FormatVTT, p.overlapGap)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	rendered, err := c.Render(translated)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return string(rendered), nil
}

// fail implements the backoff math from spec.md §4.7 "Failure path":
// delay = retryBaseMs * 2^retryCount, nextRetryAt = now + delay, status goes
// back to pending unless retryCount has reached maxRetries, in which case it
// remains failed as a terminal state.
func (p *Pool) fail(job Job, cause error) {
	row, err := p.store.FindActive(job.Key, job.SourceHash)
	priorRetries := 0
	if err == nil {
		priorRetries = row.RetryCount
	}
	retryCount := priorRetries + 1

	nextStatus := store.StatusPending
	var nextRetryAt *int64
	if retryCount >= p.maxRetries {
		nextStatus = store.StatusFailed
	} else {
		delay := p.retryBaseMs * (1 << uint(priorRetries))
		at := time.Now().UnixMilli() + delay
		nextRetryAt = &at
	}

	errCode, errMsg := classifyError(cause)
	if markErr := p.store.MarkFailed(job.JobID, retryCount, nextStatus, nextRetryAt, errCode, errMsg); markErr != nil {
		log.Printf("worker: failed to record failure for job %s: %v", job.JobID, markErr)
	} else {
		middleware.RecordTranslationJob(nextStatus)
	}
	log.Printf("worker: job %s failed (%s), retryCount=%d, nextStatus=%s: %v", job.JobID, errCode, retryCount, nextStatus, cause)
}

func classifyError(err error) (code, message string) {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return "youtube_api_error", fetchErr.Error()
	}
	return "translation_error", err.Error()
}

// DueRetries drains jobs whose nextRetryAt has elapsed back into the pool.
// A job sent back to `pending` by fail() has no channel entry anymore and
// its in-flight marker was already cleared by run(), so nothing would ever
// pick it back up without a periodic scan like this one (spec.md §4.7's
// pending→translating transition assumes something re-offers the row).
func (p *Pool) DueRetries(limit int, build func(store.Job) Job) {
	rows, err := p.store.DueForRetry(limit)
	if err != nil {
		log.Printf("worker: failed to scan due retries: %v", err)
		return
	}
	for _, row := range rows {
		job := build(row)
		p.TryEnqueue(job)
	}
}

// defaultJobFromRow rebuilds a worker Job from a stored row, reconstructing
// fetch parameters from the row's own key fields. The original request's
// `original_url` override (if any) is not persisted, so a retried fetch
// always targets the canonical YouTube endpoint for the row's VideoID/Lang/
// Track — acceptable since spec.md's `original_url` exists only to let
// callers (tests, mirrors) point at an alternate source, not as durable job
// state.
func defaultJobFromRow(row store.Job) Job {
	return Job{
		JobID:      row.ID,
		Key:        store.RequestKey{VideoID: row.VideoID, Lang: row.Lang, TargetLang: row.TargetLang, Track: row.Track, Fmt: row.Fmt},
		SourceHash: row.SourceHash,
		SourceLang: row.Lang,
		FetchParam: fetcher.Params{VideoID: row.VideoID, Lang: row.Lang, Kind: row.Track, Fmt: row.Fmt},
	}
}

// StartRetryScanner runs DueRetries on a ticker until ctx is cancelled,
// grounded on the same ticker/select shape as internal/lifecycle.Cleanup
// (itself adapted from the teacher's EtymologyScheduler).
func (p *Pool) StartRetryScanner(ctx context.Context, interval time.Duration, limit int) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.DueRetries(limit, defaultJobFromRow)
		}
	}
}
