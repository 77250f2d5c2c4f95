// Package fetcher retrieves the original subtitle track from YouTube's
// timed-text endpoint (spec.md §4.5), in the teacher's http-client-wrapper
// idiom (internal/llm.OllamaClient/GeminiClient: a struct holding a
// *http.Client with a fixed Timeout and a constructor).
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

const defaultUserAgent = "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"

const timedTextURL = "https://www.youtube.com/api/timedtext"

// ErrorKind distinguishes timeout from non-2xx from malformed response, so
// callers can report it distinctly per spec.md §7.
type ErrorKind string

const (
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindStatus    ErrorKind = "status"
	ErrKindMalformed ErrorKind = "malformed"
)

// FetchError is a fatal fetch error, surfaced to the client as 503 (spec.md §7).
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result holds both the raw upstream bytes (for the immediate reply to the
// client) and the normalized cue list (for the downstream pipeline).
type Result struct {
	Format  codec.Format
	Raw     []byte
	Cues    []codec.Cue
}

// Fetcher fetches and normalizes the upstream subtitle track.
type Fetcher struct {
	httpClient   *http.Client
	overlapGapMs int
}

// New creates a Fetcher with the given timeout.
func New(timeout time.Duration, overlapGapMs int) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		overlapGapMs: overlapGapMs,
	}
}

// Params identifies the upstream timed-text query.
type Params struct {
	VideoID string
	Lang    string
	Kind    string
	Fmt     string
	// URL, if set, is used verbatim instead of building the query from the
	// fields above (spec.md §4.8 "original_url").
	URL string
}

// Fetch retrieves and normalizes the upstream subtitle track.
func (f *Fetcher) Fetch(ctx context.Context, p Params) (*Result, error) {
	url := p.URL
	if url == "" {
		url = fmt.Sprintf("%s?v=%s&lang=%s&kind=%s&fmt=%s", timedTextURL, p.VideoID, p.Lang, p.Kind, p.Fmt)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindMalformed, Err: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, &FetchError{Kind: ErrKindTimeout, Err: err}
		}
		return nil, &FetchError{Kind: ErrKindStatus, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Kind: ErrKindStatus, Err: fmt.Errorf("upstream returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindMalformed, Err: err}
	}

	format := codec.Sniff(body, resp.Header.Get("Content-Type"))
	c, err := codec.For(format, f.overlapGapMs)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindMalformed, Err: err}
	}

	cues, err := c.Parse(body)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindMalformed, Err: err}
	}

	return &Result{Format: format, Raw: body, Cues: cues}, nil
}
