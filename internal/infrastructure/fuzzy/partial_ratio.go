package fuzzy

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// Scorer implements fuzzywuzzy-compatible partial ratio scoring on top of
// difflib's SequenceMatcher. Comparison is case sensitive and operates on
// runes.
type Scorer struct{}

func NewScorer() Scorer {
	return Scorer{}
}

func (Scorer) PartialRatio(a, b string) int {
	return PartialRatio(a, b)
}

// PartialRatio returns the best similarity (0..100) between the shorter
// string and any equally long window of the longer one.
func PartialRatio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := splitRunes(a), splitRunes(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	blocks := difflib.NewMatcher(shorter, longer).GetMatchingBlocks()
	best := 0.0
	for _, block := range blocks {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}

		ratio := difflib.NewMatcher(shorter, longer[start:end]).Ratio()
		if ratio > 0.995 {
			return 100
		}
		if ratio > best {
			best = ratio
		}
	}
	return int(math.RoundToEven(100 * best))
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
