// Package scoring implements the underground score: a heuristic [0,100]
// popularity-inverse ranking of a track built from five sub-factors.
package scoring

import (
	"sort"
	"strings"
	"time"

	"undergroundfm/internal/core"
)

const (
	// MainstreamCutoff is the minimum score a track needs to survive
	// FilterMainstream.
	MainstreamCutoff = 30

	maxScore = 100
	minScore = 0

	descriptionBonusLength = 100
	engagementBonus        = 5
)

// placeholderImageHosts mark artwork URLs produced by placeholder-image
// generators rather than real cover art.
var placeholderImageHosts = []string{
	"picsum.photos",
	"via.placeholder.com",
}

type listenerBand struct {
	Below  int
	Points int
}

// listenerBands award more points to smaller audiences. Checked in order,
// first match wins; 500K+ listeners get nothing.
var listenerBands = []listenerBand{
	{Below: 10_000, Points: 30},
	{Below: 50_000, Points: 20},
	{Below: 100_000, Points: 10},
	{Below: 500_000, Points: 5},
}

// indieBands reuse listener count as a proxy for independent-label status.
var indieBands = []listenerBand{
	{Below: 10_000, Points: 15},
	{Below: 50_000, Points: 10},
	{Below: 100_000, Points: 5},
}

// undergroundGenres score +25. Checked before the other two lists so that
// e.g. "ambient pop" counts as ambient, not pop.
var undergroundGenres = []string{
	"experimental", "ambient", "idm", "drone", "noise", "post-rock",
	"math rock", "shoegaze", "dream pop", "lo-fi", "chillwave",
	"vaporwave", "future bass", "trap", "drill", "grime",
}

// moderateGenres score +15.
var moderateGenres = []string{
	"indie", "alternative", "electronic", "hip hop", "punk",
}

// mainstreamGenres score -10.
var mainstreamGenres = []string{
	"pop", "rock", "country", "r&b",
}

const (
	undergroundGenrePoints = 25
	moderateGenrePoints    = 15
	mainstreamGenrePoints  = -10
)

type discoveryBucket struct {
	Within time.Duration
	Points int
}

// discoveryBuckets award a recency bonus for newly-seen artists based on the
// persisted first-seen timestamp.
var discoveryBuckets = []discoveryBucket{
	{Within: 30 * 24 * time.Hour, Points: 20},
	{Within: 90 * 24 * time.Hour, Points: 15},
	{Within: 180 * 24 * time.Hour, Points: 10},
}

// Scorer computes underground scores. The clock is injectable for tests.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Score fills the track's breakdown and UndergroundScore and returns the
// clamped total. Apart from the track fields it reads nothing, so equal
// inputs always score equally.
func (s *Scorer) Score(track *core.Track) int {
	breakdown := core.ScoreBreakdown{
		ListenerPoints:   bandPoints(listenerBands, track.Listeners),
		GenrePoints:      genrePoints(track.Genre),
		DiscoveryPoints:  s.discoveryPoints(track.FirstSeen),
		IndiePoints:      bandPoints(indieBands, track.Listeners),
		EngagementPoints: engagementPoints(track),
	}

	total := clamp(breakdown.Total())

	track.Breakdown = breakdown
	track.UndergroundScore = total

	return total
}

// FilterMainstream keeps only tracks scoring at or above the mainstream
// cutoff. Scores are recomputed, not read from the track.
func (s *Scorer) FilterMainstream(tracks []core.Track) []core.Track {
	filtered := make([]core.Track, 0, len(tracks))
	for i := range tracks {
		if s.Score(&tracks[i]) >= MainstreamCutoff {
			filtered = append(filtered, tracks[i])
		}
	}
	return filtered
}

// SortByScore stable-sorts tracks by underground score, highest first,
// recomputing each score.
func (s *Scorer) SortByScore(tracks []core.Track) {
	for i := range tracks {
		s.Score(&tracks[i])
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].UndergroundScore > tracks[j].UndergroundScore
	})
}

// Badge maps a score to its display tier.
func Badge(score int) string {
	switch {
	case score >= 80:
		return "deep cut"
	case score >= 65:
		return "underground"
	case score >= 50:
		return "indie"
	default:
		return "mainstream"
	}
}

func bandPoints(bands []listenerBand, listeners int) int {
	for _, band := range bands {
		if listeners < band.Below {
			return band.Points
		}
	}
	return 0
}

// genrePoints matches the genre string against the three ordered lists.
// First matching list wins; within a list, first matching term wins.
func genrePoints(genre string) int {
	if genre == "" {
		return 0
	}

	genreLower := strings.ToLower(genre)

	for _, g := range undergroundGenres {
		if strings.Contains(genreLower, g) {
			return undergroundGenrePoints
		}
	}
	for _, g := range moderateGenres {
		if strings.Contains(genreLower, g) {
			return moderateGenrePoints
		}
	}
	for _, g := range mainstreamGenres {
		if strings.Contains(genreLower, g) {
			return mainstreamGenrePoints
		}
	}

	return 0
}

// discoveryPoints buckets days since the artist was first seen. A zero
// timestamp means the deployment has no discovery record; that earns
// nothing rather than a simulated bonus.
func (s *Scorer) discoveryPoints(firstSeen time.Time) int {
	if firstSeen.IsZero() {
		return 0
	}

	age := s.now().Sub(firstSeen)
	for _, bucket := range discoveryBuckets {
		if age < bucket.Within {
			return bucket.Points
		}
	}
	return 0
}

func engagementPoints(track *core.Track) int {
	points := 0
	if len(track.Description) > descriptionBonusLength {
		points += engagementBonus
	}
	if track.Artwork != "" && !isPlaceholderArtwork(track.Artwork) {
		points += engagementBonus
	}
	return points
}

func isPlaceholderArtwork(url string) bool {
	for _, host := range placeholderImageHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
