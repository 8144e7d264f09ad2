package forecast

import (
	"strings"
	"unicode"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// closedStageTokens are whole-word markers of a closed deal. A stage text
// containing any of them excludes the deal from scoring entirely.
var closedStageTokens = []string{"won", "lost", "loss", "closed"}

// ClassifyStage maps raw CRM forecast-stage text to a bucket.
//
// The text is lowercased, every non-letter run collapses to a single space
// and the result is padded with boundary spaces so closed markers match on
// whole words only. Open deals bucket by substring priority: "commit" wins
// over "best", and anything else - including empty or unrecognized text -
// lands in Pipeline. The Pipeline catch-all is observed upstream behavior
// and is kept as-is.
func ClassifyStage(raw string) models.StageBucket {
	padded := normalizeStage(raw)

	for _, token := range closedStageTokens {
		if strings.Contains(padded, " "+token+" ") {
			return models.BucketExcluded
		}
	}

	switch {
	case strings.Contains(padded, "commit"):
		return models.BucketCommit
	case strings.Contains(padded, "best"):
		return models.BucketBestCase
	default:
		return models.BucketPipeline
	}
}

// IsOpen reports whether a stage text describes a deal the engine scores
func IsOpen(raw string) bool {
	return ClassifyStage(raw) != models.BucketExcluded
}

// normalizeStage lowercases the text, replaces each non-letter run with a
// single space and pads both ends with a space.
func normalizeStage(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 2)
	b.WriteByte(' ')

	inGap := true
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
			inGap = false
			continue
		}
		if !inGap {
			b.WriteByte(' ')
			inGap = true
		}
	}
	if !inGap {
		b.WriteByte(' ')
	}

	return b.String()
}
