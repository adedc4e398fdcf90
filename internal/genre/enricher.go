// Package genre merges genre tags from metadata lookups and keyword
// heuristics into a single normalized genre label per track.
package genre

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

// BaseTag is appended to every enriched genre set: everything flowing
// through this engine is treated as an underground candidate.
const BaseTag = "underground"

// indicator maps a substring found in artist/track/query text to the genre
// tags it implies.
type indicator struct {
	Keyword string
	Tags    []string
}

var indicators = []indicator{
	{Keyword: "underground", Tags: []string{"underground"}},
	{Keyword: "indie", Tags: []string{"indie"}},
	{Keyword: "experimental", Tags: []string{"experimental"}},
	{Keyword: "avant", Tags: []string{"avant-garde"}},
	{Keyword: "lo-fi", Tags: []string{"lo-fi", "hip-hop"}},
	{Keyword: "trap", Tags: []string{"trap", "hip-hop"}},
	{Keyword: "cloud", Tags: []string{"cloud rap", "hip-hop"}},
	{Keyword: "ambient", Tags: []string{"ambient", "electronic"}},
	{Keyword: "electronic", Tags: []string{"electronic"}},
	{Keyword: "post-rock", Tags: []string{"post-rock", "rock"}},
	{Keyword: "math rock", Tags: []string{"math rock", "rock"}},
	{Keyword: "alternative", Tags: []string{"alternative", "rock"}},
	{Keyword: "free jazz", Tags: []string{"free jazz", "jazz"}},
	{Keyword: "jazz", Tags: []string{"jazz"}},
}

// Enricher builds the genre label for a track. The metadata source and
// tagger are both best-effort: any failure degrades to the heuristic scan,
// and the worst case is the base tag alone.
type Enricher struct {
	source core.MetadataSource
	tagger core.GenreTagger
	logger *zap.Logger
}

func NewEnricher(source core.MetadataSource, tagger core.GenreTagger, logger *zap.Logger) *Enricher {
	return &Enricher{
		source: source,
		tagger: tagger,
		logger: logger,
	}
}

// Enrich returns the comma-joined genre set for a track. Sources are merged
// in order (artist tags, track tags, keyword scan, optional LLM tagger);
// later sources only add tags not already present.
func (e *Enricher) Enrich(ctx context.Context, artistName, trackName, searchQuery string) string {
	set := newTagSet()

	if info, err := e.source.ArtistInfo(ctx, artistName); err == nil && info != nil {
		set.addAll(info.Tags)
	} else if err != nil {
		e.logger.Debug("artist tag lookup failed",
			zap.String("artist", artistName),
			zap.Error(err))
	}

	if info, err := e.source.TrackInfo(ctx, artistName, trackName); err == nil && info != nil {
		set.addAll(info.Tags)
	} else if err != nil {
		e.logger.Debug("track tag lookup failed",
			zap.String("artist", artistName),
			zap.String("track", trackName),
			zap.Error(err))
	}

	set.addAll(scanKeywords(artistName, trackName, searchQuery))

	if e.tagger != nil {
		if tags, err := e.tagger.Tags(ctx, artistName, trackName); err == nil {
			set.addAll(tags)
		}
	}

	if set.empty() {
		set.addAll(scanKeywords(searchQuery))
	}

	set.add(BaseTag)

	return set.join()
}

// scanKeywords tests each indicator keyword against the given text fields
// and collects the implied tags.
func scanKeywords(fields ...string) []string {
	var tags []string
	for _, ind := range indicators {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), ind.Keyword) {
				tags = append(tags, ind.Tags...)
				break
			}
		}
	}
	return tags
}

// tagSet is an insertion-ordered set of lowercase tags.
type tagSet struct {
	seen  map[string]struct{}
	order []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[string]struct{})}
}

func (ts *tagSet) add(tag string) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return
	}
	if _, ok := ts.seen[tag]; ok {
		return
	}
	ts.seen[tag] = struct{}{}
	ts.order = append(ts.order, tag)
}

func (ts *tagSet) addAll(tags []string) {
	for _, tag := range tags {
		ts.add(tag)
	}
}

func (ts *tagSet) empty() bool {
	return len(ts.order) == 0
}

func (ts *tagSet) join() string {
	return strings.Join(ts.order, ", ")
}
