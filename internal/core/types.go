package core

import (
	"context"
	"time"
)

// Track is the fixed-shape record the discovery pipeline operates on.
// Identity fields are set at ingestion; the pipeline stages only add to it
// (enrichment overwrites Genre, scoring fills the score fields, the
// preference pass fills the match fields).
type Track struct {
	ID           string
	Title        string
	Artist       string
	Genre        string // comma-joined set of lowercase tags
	Listeners    int
	Playcount    int
	Description  string
	Artwork      string
	Duration     time.Duration
	StreamURL    string
	PermalinkURL string
	Source       string
	SearchQuery  string
	FirstSeen    time.Time

	Breakdown        ScoreBreakdown
	UndergroundScore int
	GenreMatchScore  int
	ArtistMatchScore int
	FitsPreference   bool
}

// RankScore is the final ordering key after the preference pass.
func (t *Track) RankScore() int {
	return t.GenreMatchScore + t.ArtistMatchScore + t.UndergroundScore
}

// ScoreBreakdown holds the five underground sub-scores.
type ScoreBreakdown struct {
	ListenerPoints   int
	GenrePoints      int
	DiscoveryPoints  int
	IndiePoints      int
	EngagementPoints int
}

// Total is the unclamped sum of the sub-scores.
func (b ScoreBreakdown) Total() int {
	return b.ListenerPoints + b.GenrePoints + b.DiscoveryPoints + b.IndiePoints + b.EngagementPoints
}

// UserPreferences is the per-user preference document.
type UserPreferences struct {
	FavoriteGenres   []string         `json:"favoriteGenres"`
	UndergroundLevel int              `json:"undergroundLevel"`
	FavoriteArtists  []FavoriteArtist `json:"favoriteArtists"`
}

type FavoriteArtist struct {
	Name  string `json:"name"`
	Genre string `json:"genre,omitempty"`
}

const defaultUndergroundLevel = 50

// DefaultPreferences is what a user without a stored document gets.
func DefaultPreferences() *UserPreferences {
	return &UserPreferences{
		FavoriteGenres:   []string{},
		UndergroundLevel: defaultUndergroundLevel,
		FavoriteArtists:  []FavoriteArtist{},
	}
}

// Page is the pagination cursor returned alongside a result slice.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// ArtistInfo is the validated artist payload from a metadata source.
// Counts default to zero when the source omits or mangles them.
type ArtistInfo struct {
	Name      string
	MBID      string
	Listeners int
	Playcount int
	Tags      []string
	ImageURL  string
	Bio       string
}

// TrackInfo is the validated track payload from a metadata source.
type TrackInfo struct {
	Name      string
	Artist    string
	Listeners int
	Playcount int
	Duration  time.Duration
	Tags      []string
}

// MetadataSource is the external music-metadata collaborator. Implementations
// return an error on transport failure; callers treat every error as "no
// data" and fall back per the blanket-recovery policy.
type MetadataSource interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]ArtistInfo, error)
	ArtistInfo(ctx context.Context, name string) (*ArtistInfo, error)
	TopArtists(ctx context.Context, limit int) ([]ArtistInfo, error)
	TopTracks(ctx context.Context, artist string, limit int) ([]TrackInfo, error)
	TrackInfo(ctx context.Context, artist, track string) (*TrackInfo, error)
}

// PreferenceStore loads per-user preference documents. A missing document is
// not an error: implementations return DefaultPreferences instead.
type PreferenceStore interface {
	Preferences(ctx context.Context, userID string) (*UserPreferences, error)
	SavePreferences(ctx context.Context, userID string, prefs *UserPreferences) error
}

// DiscoveryLog records when an artist was first seen by this deployment so
// the discovery-recency bonus is deterministic instead of simulated.
type DiscoveryLog interface {
	FirstSeen(ctx context.Context, artist string) (time.Time, error)
}

// GenreTagger is an optional LLM-backed tag source for genre enrichment.
// Errors are swallowed by the enricher.
type GenreTagger interface {
	Tags(ctx context.Context, artist, title string) ([]string, error)
}
