// Package classify flags mainstream artists and unofficial uploads so the
// discovery pipeline can drop them before scoring.
package classify

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const (
	// ListenerThreshold marks an artist mainstream by audience size.
	ListenerThreshold = 1_000_000
	// PlaycountThreshold marks an artist mainstream by total plays.
	PlaycountThreshold = 10_000_000
)

// topMainstreamArtists is the offline fallback for the popularity check:
// absolute top-tier acts that should never surface in underground results
// even when the metadata source is down.
var topMainstreamArtists = []string{
	"taylor swift", "drake", "ariana grande", "justin bieber", "billie eilish",
	"dua lipa", "the weeknd", "harry styles", "olivia rodrigo", "bruno mars",
	"ed sheeran", "post malone", "doja cat", "megan thee stallion", "lil nas x",

	"kendrick lamar", "j. cole", "travis scott", "lil wayne", "kanye west",
	"jay-z", "eminem", "cardi b", "nicki minaj",

	"imagine dragons", "maroon 5", "coldplay", "twenty one pilots",

	"daft punk", "deadmau5", "skrillex", "diplo", "calvin harris",

	"beyoncé", "rihanna", "chris brown", "usher",

	"madonna", "michael jackson", "prince", "whitney houston", "mariah carey",
	"the beatles", "rolling stones", "led zeppelin", "queen",
}

// unofficialIndicators in a title mark covers, rips and other uploads that
// are not the artist's own release. Matched as plain substrings.
var unofficialIndicators = []string{
	"cover", "unofficial", "fan made", "tribute", "karaoke",
	"instrumental", "remix", "bootleg", "leak", "unreleased",
	"demo", "acoustic", "live", "version", "edit", "mix",
	"reprise", "interlude", "outro", "intro", "skit",
	"freestyle", "remastered", "deluxe", "bonus", "extra",
	"b-side", "single", "album", "ep", "mixtape",
	"soundtrack", "ost", "theme", "opening", "ending",
	"credit", "trailer", "teaser", "promo", "ad",
	"commercial", "tv", "movie", "film", "documentary",
	"interview", "podcast", "radio", "stream", "live stream",
}

// coverPatterns catch parenthetical release qualifiers like "(Acoustic Live)".
var coverPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(.*cover.*\)`),
	regexp.MustCompile(`(?i)\(.*tribute.*\)`),
	regexp.MustCompile(`(?i)\(.*karaoke.*\)`),
	regexp.MustCompile(`(?i)\(.*instrumental.*\)`),
	regexp.MustCompile(`(?i)\(.*remix.*\)`),
	regexp.MustCompile(`(?i)\(.*bootleg.*\)`),
	regexp.MustCompile(`(?i)\(.*leak.*\)`),
	regexp.MustCompile(`(?i)\(.*unreleased.*\)`),
	regexp.MustCompile(`(?i)\(.*demo.*\)`),
	regexp.MustCompile(`(?i)\(.*acoustic.*\)`),
	regexp.MustCompile(`(?i)\(.*live.*\)`),
	regexp.MustCompile(`(?i)\(.*version.*\)`),
	regexp.MustCompile(`(?i)\(.*edit.*\)`),
	regexp.MustCompile(`(?i)\(.*mix.*\)`),
}

// suspiciousArtistPatterns catch artist fields that look like uploader
// handles rather than act names.
var suspiciousArtistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(user|upload|channel|fan|made|created|uploaded|posted|shared)\b`),
	regexp.MustCompile(`\b\d{4,}\b`),
	regexp.MustCompile(`(?i)\b(official|unofficial|cover|remix|tribute|karaoke|instrumental)\b`),
	regexp.MustCompile(`^[a-z0-9_]+$`),
	regexp.MustCompile(`(?i)\b(unknown|anonymous|various|various artists)\b`),
}

// Classifier decides whether a track belongs in underground results.
// The popularity lookup is best-effort; on failure it falls back to the
// curated mainstream list.
type Classifier struct {
	source core.MetadataSource
	logger *zap.Logger
}

func NewClassifier(source core.MetadataSource, logger *zap.Logger) *Classifier {
	return &Classifier{
		source: source,
		logger: logger,
	}
}

// IsMainstreamArtist checks the artist's audience against the mainstream
// thresholds. An artist is mainstream when either listeners or playcount
// exceed their threshold.
func (c *Classifier) IsMainstreamArtist(ctx context.Context, artist string) (bool, error) {
	info, err := c.source.ArtistInfo(ctx, artist)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}

	mainstream := info.Listeners >= ListenerThreshold || info.Playcount >= PlaycountThreshold

	c.logger.Debug("artist popularity check",
		zap.String("artist", artist),
		zap.Int("listeners", info.Listeners),
		zap.Int("playcount", info.Playcount),
		zap.Bool("mainstream", mainstream))

	return mainstream, nil
}

// IsKnownMainstreamArtist checks the curated top-tier list, first for an
// exact match, then for a containment in either direction.
func IsKnownMainstreamArtist(artist string) bool {
	artistLower := strings.ToLower(strings.TrimSpace(artist))
	if artistLower == "" {
		return false
	}

	for _, known := range topMainstreamArtists {
		if artistLower == known {
			return true
		}
	}
	for _, known := range topMainstreamArtists {
		if strings.Contains(artistLower, known) || strings.Contains(known, artistLower) {
			return true
		}
	}
	return false
}

// IsUnofficialRelease reports whether a track should be dropped: the artist
// is mainstream, the title carries unofficial markers, or the artist field
// looks like an uploader handle.
func (c *Classifier) IsUnofficialRelease(ctx context.Context, artist, title string) bool {
	mainstream, err := c.IsMainstreamArtist(ctx, artist)
	if err != nil {
		c.logger.Debug("popularity lookup failed, using curated list",
			zap.String("artist", artist),
			zap.Error(err))
		mainstream = IsKnownMainstreamArtist(artist)
	}
	if mainstream {
		return true
	}

	titleLower := strings.ToLower(title)
	for _, indicator := range unofficialIndicators {
		if strings.Contains(titleLower, indicator) {
			return true
		}
	}

	for _, pattern := range coverPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}

	for _, pattern := range suspiciousArtistPatterns {
		if pattern.MatchString(artist) {
			return true
		}
	}

	return false
}
