package duplicates

import "unicode/utf8"

// Levenshtein returns the edit distance between a and b counted in runes,
// with unit cost for insertion, deletion and substitution.
//
// Time complexity: O(len(a) * len(b)). Space: O(min(len(a), len(b))).
func Levenshtein(a, b string) int {
	return levenshteinRunes(toRunes(a), toRunes(b))
}

// toRunes decodes s into runes. Each byte of an invalid UTF-8 sequence
// becomes its own negative value, so distinct invalid bytes never compare
// equal to each other or to U+FFFD.
func toRunes(s string) []rune {
	if utf8.ValidString(s) {
		return []rune(s)
	}
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = -rune(s[i]) - 1
		}
		out = append(out, r)
		i += size
	}
	return out
}

func levenshteinRunes(ra, rb []rune) int {
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Keep ra as the shorter slice so the rows stay small.
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// Similarity returns (L - d) / L where d is the Levenshtein distance and L
// the longer rune length. Two empty strings score 1.0; exactly one empty
// string scores 0.0.
func Similarity(a, b string) float64 {
	ra, rb := toRunes(a), toRunes(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	l := max(len(ra), len(rb))
	d := levenshteinRunes(ra, rb)
	return float64(l-d) / float64(l)
}

// SimilarityAtLeast reports Similarity(a, b) and whether it reaches minScore.
// The distance is never smaller than the length difference, so pairs whose
// lengths alone rule out minScore skip the matrix. The returned score is
// only meaningful when ok is true.
func SimilarityAtLeast(a, b string, minScore float64) (score float64, ok bool) {
	la, lb := len(toRunes(a)), len(toRunes(b))
	if la > 0 && lb > 0 {
		l := max(la, lb)
		diff := la - lb
		if diff < 0 {
			diff = -diff
		}
		if float64(l-diff)/float64(l) < minScore {
			return 0, false
		}
	}
	score = Similarity(a, b)
	return score, score >= minScore
}
