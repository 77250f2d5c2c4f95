// Package hashkey computes the deterministic content fingerprint used to
// disambiguate job rows for the same RequestKey when upstream content
// changes (spec.md §3.1 "SourceHash").
package hashkey

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// SourceHash returns a deterministic 64-bit fingerprint of the canonicalized
// cue list, insensitive to upstream reformatting of the same content.
func SourceHash(cues []codec.Cue) string {
	var b strings.Builder
	for _, cue := range cues {
		b.WriteString(strconv.FormatInt(cue.StartMs, 10))
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(cue.EndMs, 10))
		b.WriteByte('|')
		b.WriteString(cue.Text)
		b.WriteByte('\n')
	}

	sum := xxhash.Sum64String(b.String())
	return strconv.FormatUint(sum, 16)
}
