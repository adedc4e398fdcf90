// Package dedup removes duplicate and unofficial tracks from a candidate
// batch before scoring and ranking.
package dedup

import (
	"context"

	"go.uber.org/zap"

	"undergroundfm/internal/classify"
	"undergroundfm/internal/core"
	"undergroundfm/internal/store"
	"undergroundfm/pkg/fuzzy"
)

// similarityThreshold is the title similarity above which two tracks by the
// same artist count as the same release.
const similarityThreshold = 0.9

// seenCapacity bounds the per-run seen-key store. A single batch never gets
// near this; it only caps pathological inputs.
const seenCapacity = 4096

// Deduplicator cleans candidate batches. Each Clean call runs with its own
// seen-key store, so batches never leak keys into each other.
type Deduplicator struct {
	normalizer *fuzzy.Normalizer
	classifier *classify.Classifier
	logger     *zap.Logger
}

func NewDeduplicator(classifier *classify.Classifier, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		normalizer: fuzzy.NewNormalizer(),
		classifier: classifier,
		logger:     logger,
	}
}

// Clean returns tracks with exact duplicates, unofficial releases and
// near-duplicate titles removed. First occurrence wins; input order is
// preserved. Running Clean on its own output returns it unchanged.
func (d *Deduplicator) Clean(ctx context.Context, tracks []core.Track) []core.Track {
	seen := store.NewSeenStore(seenCapacity, 0.001)
	titlesByArtist := make(map[string][]string)

	cleaned := make([]core.Track, 0, len(tracks))
	for i := range tracks {
		track := tracks[i]

		artist := d.normalizer.NormalizeArtist(track.Artist)
		title := d.normalizer.CleanTitle(track.Title)
		key := artist + "|" + title

		if seen.Has(key) {
			d.logger.Debug("skipping exact duplicate",
				zap.String("artist", track.Artist),
				zap.String("title", track.Title))
			continue
		}

		if d.classifier.IsUnofficialRelease(ctx, track.Artist, track.Title) {
			d.logger.Debug("skipping unofficial release",
				zap.String("artist", track.Artist),
				zap.String("title", track.Title))
			continue
		}

		if similar, ok := d.findSimilarTitle(artist, title, titlesByArtist); ok {
			d.logger.Debug("skipping near duplicate",
				zap.String("artist", track.Artist),
				zap.String("title", track.Title),
				zap.String("similar_to", similar))
			continue
		}

		seen.Add(key)
		titlesByArtist[artist] = append(titlesByArtist[artist], title)
		cleaned = append(cleaned, track)
	}

	return cleaned
}

// findSimilarTitle scans the kept titles of the same artist for one above
// the similarity threshold. Other artists are never compared.
func (d *Deduplicator) findSimilarTitle(artist, title string, titlesByArtist map[string][]string) (string, bool) {
	for _, existing := range titlesByArtist[artist] {
		if d.normalizer.CalculateSimilarity(title, existing) > similarityThreshold {
			return existing, true
		}
	}
	return "", false
}
