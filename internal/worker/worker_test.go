package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/fetcher"
	"github.com/double-tu/youtube-subtitle-proxy/internal/segmenter"
	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
	"github.com/double-tu/youtube-subtitle-proxy/internal/translator"
)

type stubClient struct {
	fail bool
}

func (s *stubClient) Complete(_ context.Context, _, _ string, _ int) (string, error) {
	if s.fail {
		return "", errors.New("stub failure")
	}
	return `[{"id": 0, "translation": "hola"}]`, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "proxy.db")
	st, err := store.Connect(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(st))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestPool(t *testing.T, st *store.Store, llm translator.Client, upstreamURL string) *Pool {
	t.Helper()
	c, err := cache.New(st, 100, time.Hour)
	require.NoError(t, err)

	f := fetcher.New(2*time.Second, 100)

	cfg := translator.DefaultConfig()
	cfg.ContextEnabled = true
	cfg.BatchSize = 10
	cfg.SummaryEnabled = false
	cfg.GlossaryEnabled = false
	tr := translator.New(llm, cfg)

	return New(st, c, f, tr, Config{
		Concurrency:  1,
		MaxRetries:   3,
		RetryBaseMs:  10,
		SegParams:    segmenter.DefaultParams(),
		OverlapGapMs: 100,
	})
}

func newJob(videoID, url string) Job {
	key := store.RequestKey{VideoID: videoID, Lang: "en", TargetLang: "es", Track: "asr", Fmt: "json3"}
	return Job{
		JobID:      "job-" + videoID,
		Key:        key,
		SourceHash: "hash-" + videoID,
		SourceLang: "en",
		FetchParam: fetcher.Params{URL: url},
	}
}

func TestPoolProcessesJobToDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"tStartMs":0,"dDurationMs":900,"segs":[{"utf8":"hello"}]}]}`))
	}))
	defer srv.Close()

	st := newTestStore(t)
	pool := newTestPool(t, st, &stubClient{}, srv.URL)

	key := store.RequestKey{VideoID: "vid00000001", Lang: "en", TargetLang: "es", Track: "asr", Fmt: "json3"}
	row, err := st.CreatePending(key, "hash-vid00000001", time.Hour)
	require.NoError(t, err)

	job := newJob("vid00000001", srv.URL)
	job.JobID = row.ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.True(t, pool.TryEnqueue(job))
	pool.Stop()

	got, err := st.FindActive(key, "hash-vid00000001")
	assert.ErrorIs(t, err, store.ErrNoActiveJob)
	assert.Nil(t, got)

	done, err := st.MostRecentDone(key)
	require.NoError(t, err)
	assert.Contains(t, done.Bilingual, "hello")
	assert.Contains(t, done.Bilingual, "hola")
}

func TestPoolSchedulesBackoffOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newTestStore(t)
	pool := newTestPool(t, st, &stubClient{}, srv.URL)

	key := store.RequestKey{VideoID: "vid00000002", Lang: "en", TargetLang: "es", Track: "asr", Fmt: "json3"}
	row, err := st.CreatePending(key, "hash-vid00000002", time.Hour)
	require.NoError(t, err)

	job := newJob("vid00000002", srv.URL)
	job.JobID = row.ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.True(t, pool.TryEnqueue(job))
	pool.Stop()

	got, err := st.FindActive(key, "hash-vid00000002")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, "youtube_api_error", got.ErrorCode)
}

func TestPoolMarksTerminalFailedAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newTestStore(t)
	pool := newTestPool(t, st, &stubClient{}, srv.URL)
	pool.maxRetries = 1

	key := store.RequestKey{VideoID: "vid00000003", Lang: "en", TargetLang: "es", Track: "asr", Fmt: "json3"}
	row, err := st.CreatePending(key, "hash-vid00000003", time.Hour)
	require.NoError(t, err)

	job := newJob("vid00000003", srv.URL)
	job.JobID = row.ID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.True(t, pool.TryEnqueue(job))
	pool.Stop()

	got, err := st.FindActive(key, "hash-vid00000003")
	assert.ErrorIs(t, err, store.ErrNoActiveJob)
	assert.Nil(t, got)

	var failedRows []store.Job
	failedRows, err = st.RecentByVideo("vid00000003", 10)
	require.NoError(t, err)
	require.Len(t, failedRows, 1)
	assert.Equal(t, store.StatusFailed, failedRows[0].Status)
}

func TestTryEnqueueDeduplicatesInFlight(t *testing.T) {
	st := newTestStore(t)
	pool := newTestPool(t, st, &stubClient{}, "http://example.invalid")
	// Don't Start the pool, so the job stays parked in the channel/in-flight set.

	job := newJob("vid00000004", "http://example.invalid")
	assert.True(t, pool.TryEnqueue(job))
	assert.False(t, pool.TryEnqueue(job))
}
