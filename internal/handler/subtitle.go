// Package handler is the request dispatcher (C8): Gin handlers in the
// teacher's style (gin.Context, c.JSON, route groups), mirroring
// api-go/internal/handler/word.go's GetEtymology for the cache-hit/miss
// dispatch shape (spec.md §4.8).
package handler

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
	"github.com/double-tu/youtube-subtitle-proxy/internal/fetcher"
	"github.com/double-tu/youtube-subtitle-proxy/internal/hashkey"
	"github.com/double-tu/youtube-subtitle-proxy/internal/middleware"
	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
	"github.com/double-tu/youtube-subtitle-proxy/internal/worker"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Defaults mirror spec.md §4.8.
const (
	defaultTargetLang = "zh-CN"
	defaultKind       = "asr"
	defaultFmt        = "json3"

	maxLangLen = 10
)

// SubtitleHandler serves GET /api/subtitle (alias /api/timedtext).
type SubtitleHandler struct {
	store      *store.Store
	cache      *cache.Cache
	fetcher    *fetcher.Fetcher
	pool       *worker.Pool
	jobTTL     time.Duration
	overlapGap int

	// fetchGroup coalesces concurrent cache-miss requests sharing a
	// RequestKey into a single upstream fetch + job-row creation, per
	// spec.md §8 Scenario 3 ("fifty simultaneous cache-miss requests...
	// exactly one upstream fetch, one job row, one LLM translation dispatch
	// sequence").
	fetchGroup singleflight.Group
}

// New builds a SubtitleHandler.
func New(st *store.Store, c *cache.Cache, f *fetcher.Fetcher, pool *worker.Pool, jobTTL time.Duration, overlapGapMs int) *SubtitleHandler {
	return &SubtitleHandler{store: st, cache: c, fetcher: f, pool: pool, jobTTL: jobTTL, overlapGap: overlapGapMs}
}

// coalescedFetch is the shared result of one upstream fetch + dedup/enqueue
// pass, returned to every request waiting on the same singleflight key.
type coalescedFetch struct {
	result *fetcher.Result
}

func requestKeyString(key store.RequestKey) string {
	return key.VideoID + "|" + key.Lang + "|" + key.TargetLang + "|" + key.Track + "|" + key.Fmt
}

// Get implements the steps in spec.md §4.8.
func (h *SubtitleHandler) Get(c *gin.Context) {
	videoID := c.Query("v")
	lang := c.Query("lang")
	if !videoIDRe.MatchString(videoID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_video_id", "message": "v must match [A-Za-z0-9_-]{11}"})
		return
	}
	if lang == "" || len(lang) > maxLangLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language", "message": "lang is required and must be at most 10 characters"})
		return
	}

	tlang := c.DefaultQuery("tlang", defaultTargetLang)
	kind := c.DefaultQuery("kind", defaultKind)
	fmtParam := c.DefaultQuery("fmt", defaultFmt)
	originalURL := c.Query("original_url")

	if len(tlang) > maxLangLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language", "message": "tlang must be at most 10 characters"})
		return
	}

	key := store.RequestKey{VideoID: videoID, Lang: lang, TargetLang: tlang, Track: kind, Fmt: fmtParam}

	// Step 2: cache lookup.
	if bilingual, ok := h.cache.Get(key); ok {
		format := codec.Format(fmtParam)
		rendered, err := reRender(bilingual, format, h.overlapGap)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
			return
		}
		middleware.RecordSubtitleRequest("HIT")
		c.Header("X-Translation-Status", "completed")
		c.Header("X-Cache-Status", "HIT")
		c.Header("X-Video-Id", videoID)
		c.Data(http.StatusOK, contentTypeFor(format), rendered)
		return
	}

	// Steps 3-5: upstream fetch, sourceHash, dedup/enqueue — coalesced via
	// singleflight so concurrent identical-RequestKey misses share one fetch
	// and one job-row/enqueue pass instead of each doing its own (spec.md §8
	// Scenario 3). The fetch runs with its own background-rooted timeout
	// rather than the first caller's request context, so one client hanging
	// up doesn't abort the fetch for others waiting on the same key.
	fetchParams := fetcher.Params{VideoID: videoID, Lang: lang, Kind: kind, Fmt: fmtParam, URL: originalURL}
	v, err, _ := h.fetchGroup.Do(requestKeyString(key), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := h.fetcher.Fetch(ctx, fetchParams)
		if err != nil {
			return nil, err
		}

		sourceHash := hashkey.SourceHash(result.Cues)
		if _, err := h.store.FindActive(key, sourceHash); err == store.ErrNoActiveJob {
			row, createErr := h.store.CreatePending(key, sourceHash, h.jobTTL)
			if createErr == nil {
				h.pool.TryEnqueue(worker.Job{
					JobID:      row.ID,
					Key:        key,
					SourceHash: sourceHash,
					SourceLang: lang,
					FetchParam: fetchParams,
				})
			}
		}

		return &coalescedFetch{result: result}, nil
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "youtube_api_error", "message": err.Error()})
		return
	}
	result := v.(*coalescedFetch).result

	// Step 6: reply with the upstream's raw bytes.
	middleware.RecordSubtitleRequest("MISS")
	c.Header("X-Translation-Status", "pending")
	c.Header("X-Cache-Status", "MISS")
	c.Header("X-Video-Id", videoID)
	c.Header("X-Estimated-Time", "30")
	c.Data(http.StatusOK, contentTypeFor(result.Format), result.Raw)
}

// reRender re-parses stored bilingual WebVTT text and re-renders it in the
// requested format, since the store always persists the worker's rendered
// WebVTT regardless of the originally requested fmt.
func reRender(bilingualVTT string, format codec.Format, overlapGapMs int) ([]byte, error) {
	vtt, err := codec.For(codec.FormatVTT, overlapGapMs)
	if err != nil {
		return nil, err
	}
	cues, err := vtt.Parse([]byte(bilingualVTT))
	if err != nil {
		return nil, err
	}

	target, err := codec.For(format, overlapGapMs)
	if err != nil {
		return nil, fmt.Errorf("unsupported fmt %q: %w", format, err)
	}
	return target.Render(cues)
}

func contentTypeFor(format codec.Format) string {
	switch format {
	case codec.FormatJSON3:
		return "application/json"
	case codec.FormatVTT:
		return "text/vtt"
	default:
		return "application/xml"
	}
}
