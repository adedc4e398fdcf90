// Package recommend assembles personalized underground track
// recommendations and search results from metadata candidates.
package recommend

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"undergroundfm/internal/core"
	"undergroundfm/internal/dedup"
	"undergroundfm/internal/genre"
	"undergroundfm/internal/scoring"
	"undergroundfm/internal/store"
	"undergroundfm/pkg/embed"
	"undergroundfm/pkg/fuzzy"
)

const (
	// favoriteArtistBonus rewards a favorite artist whose track already
	// fits the listener's underground preference.
	favoriteArtistBonus = 30
	// favoriteArtistRescue keeps a favorite artist's track that would
	// otherwise be dropped for not fitting the preference.
	favoriteArtistRescue = 5

	genreMatchPoints = 20

	sourceChart    = "chart"
	sourceSearch   = "search"
	sourceFallback = "fallback"
)

// fallbackExpansions derives underground search queries from a favorite
// genre. Genres without an entry expand to "underground <genre>".
var fallbackExpansions = map[string][]string{
	"experimental": {"experimental music", "avant-garde"},
	"trap":         {"underground trap", "lo-fi trap", "cloud rap"},
	"jazz":         {"experimental jazz", "free jazz", "jazz fusion"},
	"alternative":  {"indie rock", "post-rock", "math rock"},
}

// genericFallbackQueries run after the genre-derived ones so a listener
// with no favorites still gets results.
var genericFallbackQueries = []string{
	"underground hip-hop",
	"indie music",
	"experimental electronic",
}

// ResultSet is one completed assembly run. Generations increase per run;
// holders of a ResultSet replace theirs only with a newer generation, so a
// slow run can never overwrite a fresher one.
type ResultSet struct {
	Generation  int64
	Kind        string
	Query       string
	Tracks      []core.Track
	GeneratedAt time.Time
}

// Assembler runs the discovery pipeline: fetch candidates, enrich genres,
// clean, score, personalize and rank.
type Assembler struct {
	source     core.MetadataSource
	prefs      core.PreferenceStore
	discovery  core.DiscoveryLog
	scorer     *scoring.Scorer
	enricher   *genre.Enricher
	cleaner    *dedup.Deduplicator
	normalizer *fuzzy.Normalizer
	config     core.DiscoveryConfig
	logger     *zap.Logger

	generation atomic.Int64
}

func NewAssembler(
	source core.MetadataSource,
	prefs core.PreferenceStore,
	discovery core.DiscoveryLog,
	scorer *scoring.Scorer,
	enricher *genre.Enricher,
	cleaner *dedup.Deduplicator,
	config core.DiscoveryConfig,
	logger *zap.Logger,
) *Assembler {
	return &Assembler{
		source:     source,
		prefs:      prefs,
		discovery:  discovery,
		scorer:     scorer,
		enricher:   enricher,
		cleaner:    cleaner,
		normalizer: fuzzy.NewNormalizer(),
		config:     config,
		logger:     logger,
	}
}

// Recommendations assembles a personalized result set for a user, seeded
// from the trending chart. When personalization leaves nothing, the
// fallback search derived from the user's favorite genres fills in.
func (a *Assembler) Recommendations(ctx context.Context, userID string) (*ResultSet, error) {
	prefs, err := a.prefs.Preferences(ctx, userID)
	if err != nil {
		a.logger.Warn("failed to load preferences, using defaults",
			zap.String("user", userID),
			zap.Error(err))
		prefs = core.DefaultPreferences()
	}

	var tracks []core.Track

	artists, err := a.source.TopArtists(ctx, a.config.TrendingArtists)
	if err != nil {
		a.logger.Warn("trending chart fetch failed", zap.Error(err))
	} else {
		candidates := a.fetchChartCandidates(ctx, artists)
		cleaned := a.cleaner.Clean(ctx, candidates)
		tracks = a.personalize(cleaned, prefs)
	}

	if len(tracks) == 0 {
		a.logger.Info("no personalized recommendations, running fallback search",
			zap.String("user", userID))
		tracks = a.fallbackSearch(ctx, prefs)
	}

	a.rank(tracks)

	a.logger.Info("recommendations assembled",
		zap.String("user", userID),
		zap.Int("tracks", len(tracks)))

	return a.newResultSet("recommendations", "", tracks), nil
}

// Search assembles results for a free-text query. A blank query is a no-op
// returning an empty set.
func (a *Assembler) Search(ctx context.Context, query string) (*ResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return a.newResultSet("search", query, nil), nil
	}

	artists, err := a.source.SearchArtists(ctx, query, a.config.SearchArtists)
	if err != nil {
		a.logger.Warn("artist search failed",
			zap.String("query", query),
			zap.Error(err))
		return a.newResultSet("search", query, nil), nil
	}

	candidates := a.fetchSearchCandidates(ctx, artists, query)
	cleaned := a.cleaner.Clean(ctx, candidates)
	kept := a.scorer.FilterMainstream(cleaned)
	a.scorer.SortByScore(kept)

	a.logger.Info("search assembled",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("tracks", len(kept)))

	return a.newResultSet("search", query, kept), nil
}

// fetchChartCandidates grabs the top track of each trending artist with
// bounded concurrency. Each goroutine writes only its own slot, so results
// keep chart order and no locking is needed.
func (a *Assembler) fetchChartCandidates(ctx context.Context, artists []core.ArtistInfo) []core.Track {
	results := make([]*core.Track, len(artists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.FanOut)

	for i := range artists {
		g.Go(func() error {
			name := artists[i].Name
			top, err := a.source.TopTracks(gctx, name, 1)
			if err != nil || len(top) == 0 {
				a.logger.Debug("no top track for artist",
					zap.String("artist", name),
					zap.Error(err))
				return nil
			}
			track := a.buildTrack(gctx, name, top[0], "", sourceChart)
			results[i] = &track
			return nil
		})
	}
	g.Wait()

	return compact(results)
}

// fetchSearchCandidates expands each matched artist into their top tracks.
func (a *Assembler) fetchSearchCandidates(ctx context.Context, artists []core.ArtistInfo, query string) []core.Track {
	perArtist := a.config.SearchTracksPerArtist
	results := make([]*core.Track, len(artists)*perArtist)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.FanOut)

	for i := range artists {
		g.Go(func() error {
			name := artists[i].Name
			top, err := a.source.TopTracks(gctx, name, perArtist)
			if err != nil {
				a.logger.Debug("top tracks fetch failed",
					zap.String("artist", name),
					zap.Error(err))
				return nil
			}
			for j := range top {
				if j >= perArtist {
					break
				}
				track := a.buildTrack(gctx, name, top[j], query, sourceSearch)
				results[i*perArtist+j] = &track
			}
			return nil
		})
	}
	g.Wait()

	return compact(results)
}

// fallbackSearch walks genre-derived underground queries serially,
// collecting tracks that score above the fallback floor. A processed-artist
// set guarantees no artist is fetched twice across queries.
func (a *Assembler) fallbackSearch(ctx context.Context, prefs *core.UserPreferences) []core.Track {
	queries := fallbackQueries(prefs.FavoriteGenres, a.config.MaxFallbackQueries)
	processed := store.NewSeenStore(seenArtistCapacity, 0.001)

	var collected []core.Track

	for _, query := range queries {
		if len(collected) >= a.config.FallbackTrackCap {
			break
		}

		artists, err := a.source.SearchArtists(ctx, query, a.config.FallbackArtistLimit)
		if err != nil {
			a.logger.Debug("fallback query failed",
				zap.String("query", query),
				zap.Error(err))
			continue
		}

		for _, artist := range artists {
			if len(collected) >= a.config.FallbackTrackCap {
				break
			}

			key := strings.ToLower(strings.TrimSpace(artist.Name))
			if processed.Has(key) {
				continue
			}
			processed.Add(key)

			top, err := a.source.TopTracks(ctx, artist.Name, a.config.FallbackTracksPerArtist)
			if err != nil {
				continue
			}

			for t := range top {
				if len(collected) >= a.config.FallbackTrackCap {
					break
				}
				track := a.buildTrack(ctx, artist.Name, top[t], query, sourceFallback)
				if a.scorer.Score(&track) < a.config.FallbackMinScore {
					continue
				}
				collected = append(collected, track)
			}
		}
	}

	cleaned := a.cleaner.Clean(ctx, collected)
	a.applyMatchScores(cleaned, prefs)
	return cleaned
}

const seenArtistCapacity = 1024

// buildTrack assembles a fixed-shape track from metadata lookups. Every
// lookup is best-effort; missing data defaults rather than fails.
func (a *Assembler) buildTrack(ctx context.Context, artistName string, top core.TrackInfo, query, sourceLabel string) core.Track {
	track := core.Track{
		ID:          a.trackID(artistName, top.Name),
		Title:       top.Name,
		Artist:      artistName,
		Listeners:   top.Listeners,
		Playcount:   top.Playcount,
		Duration:    top.Duration,
		Source:      sourceLabel,
		SearchQuery: query,
	}

	if info, err := a.source.ArtistInfo(ctx, artistName); err == nil && info != nil {
		if track.Listeners == 0 {
			track.Listeners = info.Listeners
		}
		if track.Playcount == 0 {
			track.Playcount = info.Playcount
		}
		track.Description = info.Bio
		track.Artwork = info.ImageURL
	} else if err != nil {
		a.logger.Debug("artist info fetch failed",
			zap.String("artist", artistName),
			zap.Error(err))
	}

	if firstSeen, err := a.discovery.FirstSeen(ctx, artistName); err == nil {
		track.FirstSeen = firstSeen
	} else {
		a.logger.Debug("discovery log lookup failed",
			zap.String("artist", artistName),
			zap.Error(err))
	}

	track.Genre = a.enricher.Enrich(ctx, artistName, top.Name, query)
	track.StreamURL = embed.SoundCloudSearchURL(artistName, top.Name)
	track.PermalinkURL = embed.SoundCloudSearchURL(artistName, top.Name)

	return track
}

// personalize scores tracks and applies the user's preferences: matching
// favorite genres add points, non-fitting tracks are dropped unless a
// favorite artist rescues them.
func (a *Assembler) personalize(tracks []core.Track, prefs *core.UserPreferences) []core.Track {
	kept := make([]core.Track, 0, len(tracks))

	for i := range tracks {
		track := tracks[i]
		score := a.scorer.Score(&track)

		track.GenreMatchScore = genreMatchScore(track.Genre, prefs.FavoriteGenres)
		track.FitsPreference = fitsPreference(prefs.UndergroundLevel, score)
		favorite := isFavoriteArtist(track.Artist, prefs.FavoriteArtists)

		switch {
		case track.FitsPreference:
			if favorite {
				track.ArtistMatchScore = favoriteArtistBonus
			}
		case favorite:
			track.ArtistMatchScore = favoriteArtistRescue
		default:
			continue
		}

		kept = append(kept, track)
	}

	return kept
}

// applyMatchScores fills the preference-match fields without dropping
// anything. Fallback tracks already cleared the score floor, so they rank
// on the same genre/artist match key as chart tracks.
func (a *Assembler) applyMatchScores(tracks []core.Track, prefs *core.UserPreferences) {
	for i := range tracks {
		track := &tracks[i]
		score := a.scorer.Score(track)

		track.GenreMatchScore = genreMatchScore(track.Genre, prefs.FavoriteGenres)
		track.FitsPreference = fitsPreference(prefs.UndergroundLevel, score)
		if isFavoriteArtist(track.Artist, prefs.FavoriteArtists) {
			if track.FitsPreference {
				track.ArtistMatchScore = favoriteArtistBonus
			} else {
				track.ArtistMatchScore = favoriteArtistRescue
			}
		}
	}
}

// rank orders tracks by combined rank score, highest first. The sort is
// stable, so equally ranked tracks keep their fetch order.
func (a *Assembler) rank(tracks []core.Track) {
	sortStableByRank(tracks)
}

func (a *Assembler) newResultSet(kind, query string, tracks []core.Track) *ResultSet {
	if tracks == nil {
		tracks = []core.Track{}
	}
	return &ResultSet{
		Generation:  a.generation.Add(1),
		Kind:        kind,
		Query:       query,
		Tracks:      tracks,
		GeneratedAt: time.Now(),
	}
}

func (a *Assembler) trackID(artist, title string) string {
	return a.normalizer.NormalizeArtist(artist) + "|" + a.normalizer.CleanTitle(title)
}

// genreMatchScore awards points per favorite genre that overlaps the
// track's genre label in either direction.
func genreMatchScore(trackGenre string, favorites []string) int {
	if trackGenre == "" || len(favorites) == 0 {
		return 0
	}

	genreLower := strings.ToLower(trackGenre)
	matches := 0
	for _, favorite := range favorites {
		favLower := strings.ToLower(strings.TrimSpace(favorite))
		if favLower == "" {
			continue
		}
		if strings.Contains(genreLower, favLower) || strings.Contains(favLower, genreLower) {
			matches++
		}
	}
	return matches * genreMatchPoints
}

// fitsPreference maps the underground level to a minimum score: committed
// listeners (75+) want 60+, casual ones (50+) want 30+, everyone else
// takes anything.
func fitsPreference(level, score int) bool {
	switch {
	case level >= 75:
		return score >= 60
	case level >= 50:
		return score >= 30
	default:
		return true
	}
}

// isFavoriteArtist matches by exact normalized name. Substring matching is
// deliberately avoided here: a favorite named "Nova" must not boost
// "Supernova Cult".
func isFavoriteArtist(artist string, favorites []core.FavoriteArtist) bool {
	artistLower := strings.ToLower(strings.TrimSpace(artist))
	if artistLower == "" {
		return false
	}
	for _, favorite := range favorites {
		if strings.ToLower(strings.TrimSpace(favorite.Name)) == artistLower {
			return true
		}
	}
	return false
}

// fallbackQueries expands favorite genres into underground search queries,
// then appends the generic ones, deduplicated and capped.
func fallbackQueries(favorites []string, max int) []string {
	seen := make(map[string]struct{})
	var queries []string

	add := func(query string) {
		if len(queries) >= max {
			return
		}
		if _, ok := seen[query]; ok {
			return
		}
		seen[query] = struct{}{}
		queries = append(queries, query)
	}

	for _, favorite := range favorites {
		genreLower := strings.ToLower(strings.TrimSpace(favorite))
		if genreLower == "" {
			continue
		}
		if expansions, ok := fallbackExpansions[genreLower]; ok {
			for _, query := range expansions {
				add(query)
			}
		} else {
			add("underground " + genreLower)
		}
	}

	for _, query := range genericFallbackQueries {
		add(query)
	}

	return queries
}

func compact(results []*core.Track) []core.Track {
	tracks := make([]core.Track, 0, len(results))
	for _, track := range results {
		if track != nil {
			tracks = append(tracks, *track)
		}
	}
	return tracks
}
