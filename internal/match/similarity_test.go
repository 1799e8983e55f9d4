package match

import (
	"math"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  Berghain  ", "berghain"},
		{"Café D'Anvers!", "café danvers"},
		{"THE   WAREHOUSE   project", "the warehouse project"},
		{"---", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"berghain", "berghain", 0},
		{"tresor", "treson", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	t.Parallel()

	if got := NameSimilarity("Berghain", "berghain"); got != 100 {
		t.Fatalf("identical names after normalization = %v, want 100", got)
	}
	if got := NameSimilarity("", "Berghain"); got != 0 {
		t.Fatalf("empty name = %v, want 0", got)
	}

	// "tresor" vs "treson": one edit over six runes.
	got := NameSimilarity("Tresor", "Treson")
	want := float64(6-1) / 6 * 100
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("NameSimilarity = %v, want %v", got, want)
	}
}

func TestNameSimilarityDisjointNames(t *testing.T) {
	t.Parallel()

	if got := NameSimilarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint names = %v, want 0", got)
	}
}
