package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const (
	lastFMTimeout = 10 * time.Second

	// artistCacheSize bounds the artist-info LRU. Artist lookups repeat
	// heavily within a run (classifier, enricher and scorer all ask), so
	// even a small cache removes most round trips.
	artistCacheSize = 512
)

// LastFM is the audioscrobbler-backed metadata source.
type LastFM struct {
	config      *core.LastFMConfig
	logger      *zap.Logger
	httpClient  *http.Client
	artistCache *lru.Cache[string, *core.ArtistInfo]
}

func NewLastFM(config *core.LastFMConfig, logger *zap.Logger) *LastFM {
	cache, _ := lru.New[string, *core.ArtistInfo](artistCacheSize)

	return &LastFM{
		config:      config,
		logger:      logger,
		httpClient:  &http.Client{Timeout: lastFMTimeout},
		artistCache: cache,
	}
}

// API responses carry all counts as decimal strings.

type lfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type lfmTag struct {
	Name string `json:"name"`
}

type lfmArtist struct {
	Name      string     `json:"name"`
	MBID      string     `json:"mbid"`
	Listeners string     `json:"listeners"`
	Images    []lfmImage `json:"image"`
	Stats     struct {
		Listeners string `json:"listeners"`
		Playcount string `json:"playcount"`
	} `json:"stats"`
	Tags struct {
		Tag []lfmTag `json:"tag"`
	} `json:"tags"`
	Bio struct {
		Summary string `json:"summary"`
	} `json:"bio"`
}

type lfmTrack struct {
	Name      string     `json:"name"`
	Listeners string     `json:"listeners"`
	Playcount string     `json:"playcount"`
	Duration  string     `json:"duration"`
	Images    []lfmImage `json:"image"`
	Artist    struct {
		Name string `json:"name"`
	} `json:"artist"`
	TopTags struct {
		Tag []lfmTag `json:"tag"`
	} `json:"toptags"`
}

type lfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// SearchArtists runs artist.search and returns up to limit matches.
func (l *LastFM) SearchArtists(ctx context.Context, query string, limit int) ([]core.ArtistInfo, error) {
	var resp struct {
		lfmError
		Results struct {
			ArtistMatches struct {
				Artist []lfmArtist `json:"artist"`
			} `json:"artistmatches"`
		} `json:"results"`
	}

	params := url.Values{}
	params.Set("method", "artist.search")
	params.Set("artist", query)
	params.Set("limit", strconv.Itoa(limit))

	if err := l.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("artist search failed: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("artist search failed: %s", resp.Message)
	}

	matches := resp.Results.ArtistMatches.Artist
	artists := make([]core.ArtistInfo, 0, len(matches))
	for _, a := range matches {
		artists = append(artists, core.ArtistInfo{
			Name:      a.Name,
			MBID:      a.MBID,
			Listeners: parseCount(a.Listeners),
			ImageURL:  bestImage(a.Images),
		})
	}
	return artists, nil
}

// ArtistInfo runs artist.getinfo. Results are cached per artist name.
func (l *LastFM) ArtistInfo(ctx context.Context, name string) (*core.ArtistInfo, error) {
	if cached, ok := l.artistCache.Get(name); ok {
		return cached, nil
	}

	var resp struct {
		lfmError
		Artist *lfmArtist `json:"artist"`
	}

	params := url.Values{}
	params.Set("method", "artist.getinfo")
	params.Set("artist", name)

	if err := l.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("artist info failed: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("artist info failed: %s", resp.Message)
	}
	if resp.Artist == nil {
		return nil, fmt.Errorf("artist not found: %s", name)
	}

	info := &core.ArtistInfo{
		Name:      resp.Artist.Name,
		MBID:      resp.Artist.MBID,
		Listeners: parseCount(resp.Artist.Stats.Listeners),
		Playcount: parseCount(resp.Artist.Stats.Playcount),
		Tags:      tagNames(resp.Artist.Tags.Tag),
		ImageURL:  bestImage(resp.Artist.Images),
		Bio:       resp.Artist.Bio.Summary,
	}

	l.artistCache.Add(name, info)
	return info, nil
}

// TopArtists runs chart.gettopartists: the trending seed for recommendations.
func (l *LastFM) TopArtists(ctx context.Context, limit int) ([]core.ArtistInfo, error) {
	var resp struct {
		lfmError
		Artists struct {
			Artist []lfmArtist `json:"artist"`
		} `json:"artists"`
	}

	params := url.Values{}
	params.Set("method", "chart.gettopartists")
	params.Set("limit", strconv.Itoa(limit))

	if err := l.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("top artists failed: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("top artists failed: %s", resp.Message)
	}

	artists := make([]core.ArtistInfo, 0, len(resp.Artists.Artist))
	for _, a := range resp.Artists.Artist {
		artists = append(artists, core.ArtistInfo{
			Name:      a.Name,
			MBID:      a.MBID,
			Listeners: parseCount(a.Listeners),
			ImageURL:  bestImage(a.Images),
		})
	}
	return artists, nil
}

// TopTracks runs artist.gettoptracks.
func (l *LastFM) TopTracks(ctx context.Context, artist string, limit int) ([]core.TrackInfo, error) {
	var resp struct {
		lfmError
		TopTracks struct {
			Track []lfmTrack `json:"track"`
		} `json:"toptracks"`
	}

	params := url.Values{}
	params.Set("method", "artist.gettoptracks")
	params.Set("artist", artist)
	params.Set("limit", strconv.Itoa(limit))

	if err := l.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("top tracks failed: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("top tracks failed: %s", resp.Message)
	}

	tracks := make([]core.TrackInfo, 0, len(resp.TopTracks.Track))
	for _, t := range resp.TopTracks.Track {
		tracks = append(tracks, core.TrackInfo{
			Name:      t.Name,
			Artist:    artist,
			Listeners: parseCount(t.Listeners),
			Playcount: parseCount(t.Playcount),
		})
	}
	return tracks, nil
}

// TrackInfo runs track.getinfo for tags and duration.
func (l *LastFM) TrackInfo(ctx context.Context, artist, track string) (*core.TrackInfo, error) {
	var resp struct {
		lfmError
		Track *lfmTrack `json:"track"`
	}

	params := url.Values{}
	params.Set("method", "track.getinfo")
	params.Set("artist", artist)
	params.Set("track", track)

	if err := l.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("track info failed: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("track info failed: %s", resp.Message)
	}
	if resp.Track == nil {
		return nil, fmt.Errorf("track not found: %s - %s", artist, track)
	}

	return &core.TrackInfo{
		Name:      resp.Track.Name,
		Artist:    resp.Track.Artist.Name,
		Listeners: parseCount(resp.Track.Listeners),
		Playcount: parseCount(resp.Track.Playcount),
		Duration:  time.Duration(parseCount(resp.Track.Duration)) * time.Millisecond,
		Tags:      tagNames(resp.Track.TopTags.Tag),
	}, nil
}

func (l *LastFM) get(ctx context.Context, params url.Values, v any) error {
	params.Set("api_key", l.config.APIKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.BaseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// parseCount parses the API's decimal-string counters; anything unparsable
// counts as zero.
func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func tagNames(tags []lfmTag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// bestImage prefers the largest size the API returned.
func bestImage(images []lfmImage) string {
	for _, size := range []string{"extralarge", "large", "medium"} {
		for _, img := range images {
			if img.Size == size && img.URL != "" {
				return img.URL
			}
		}
	}
	for _, img := range images {
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}
