package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// versionMarkers are the parenthetical upload markers stripped from titles
// before duplicate keys are built. Only markers that never carry identity
// are removed; "(Remix)" and friends are handled by the classifier instead.
var versionMarkers = []string{
	"(official video)",
	"(lyric video)",
	"(official audio)",
	"(music video)",
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist lower-cases and trims an artist name for key building.
func (n *Normalizer) NormalizeArtist(artist string) string {
	return strings.ToLower(strings.TrimSpace(artist))
}

// NormalizeTitle lower-cases and trims a title for key building.
func (n *Normalizer) NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// CleanTitle normalizes a title and strips version markers, yielding the
// duplicate-detection key component.
func (n *Normalizer) CleanTitle(title string) string {
	title = n.NormalizeTitle(title)
	for _, marker := range versionMarkers {
		title = strings.ReplaceAll(title, marker, "")
	}
	return strings.TrimSpace(title)
}

// BasicNormalize folds accents, strips punctuation and collapses whitespace.
// Used for loose text matching against keyword tables.
func (n *Normalizer) BasicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}

// CalculateSimilarity returns a normalized edit-distance similarity in
// [0, 1]: 1 - levenshtein(s1, s2) / max(len(s1), len(s2)). Identical
// strings, including two empty strings, score 1.0.
func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	longest := max(len(s1), len(s2))
	return 1.0 - float64(n.levenshteinDistance(s1, s2))/float64(longest)
}

// levenshteinDistance is the classic unit-cost edit distance
// (insert/delete/substitute) over bytes of the already-normalized inputs.
func (n *Normalizer) levenshteinDistance(s1, s2 string) int {
	m, l := len(s1), len(s2)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, l+1)
		dp[i][0] = i
	}
	for j := 0; j <= l; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= l; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = min(dp[i-1][j-1], dp[i][j-1], dp[i-1][j]) + 1
			}
		}
	}

	return dp[m][l]
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
