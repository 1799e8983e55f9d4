package match

import (
	"strings"
	"unicode"
)

// NormalizeName prepares a name for similarity scoring: lowercase, punctuation
// stripped, whitespace collapsed.
func NormalizeName(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// levenshtein computes edit distance over runes with a two-row matrix.
func levenshtein(a, b string) int {
	left := []rune(a)
	right := []rune(b)
	if len(left) == 0 {
		return len(right)
	}
	if len(right) == 0 {
		return len(left)
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(left); i++ {
		curr[0] = i
		for j := 1; j <= len(right); j++ {
			cost := 1
			if left[i-1] == right[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(right)]
}

// NameSimilarity scores two names as (maxLen - distance) / maxLen * 100 after
// normalization. Two empty names score zero, not a hundred.
func NameSimilarity(a, b string) float64 {
	left := NormalizeName(a)
	right := NormalizeName(b)
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 100
	}

	maxLen := len([]rune(left))
	if l := len([]rune(right)); l > maxLen {
		maxLen = l
	}
	distance := levenshtein(left, right)
	if distance >= maxLen {
		return 0
	}
	return float64(maxLen-distance) / float64(maxLen) * 100
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
