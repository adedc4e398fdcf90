package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"undergroundfm/internal/classify"
	"undergroundfm/internal/core"
	"undergroundfm/internal/dedup"
	"undergroundfm/internal/genre"
	"undergroundfm/internal/scoring"
)

type fakeSource struct {
	mu sync.Mutex

	topArtists    []core.ArtistInfo
	topArtistsErr error
	artists       map[string]*core.ArtistInfo
	topTracks     map[string][]core.TrackInfo
	searchResults map[string][]core.ArtistInfo

	searchQueries []string
}

func (f *fakeSource) SearchArtists(_ context.Context, query string, _ int) ([]core.ArtistInfo, error) {
	f.mu.Lock()
	f.searchQueries = append(f.searchQueries, query)
	f.mu.Unlock()
	return f.searchResults[query], nil
}

func (f *fakeSource) ArtistInfo(_ context.Context, name string) (*core.ArtistInfo, error) {
	if info, ok := f.artists[name]; ok {
		return info, nil
	}
	return nil, errors.New("artist not found")
}

func (f *fakeSource) TopArtists(_ context.Context, _ int) ([]core.ArtistInfo, error) {
	if f.topArtistsErr != nil {
		return nil, f.topArtistsErr
	}
	return f.topArtists, nil
}

func (f *fakeSource) TopTracks(_ context.Context, artist string, limit int) ([]core.TrackInfo, error) {
	tracks := f.topTracks[artist]
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (f *fakeSource) TrackInfo(_ context.Context, _, _ string) (*core.TrackInfo, error) {
	return nil, errors.New("track not found")
}

func (f *fakeSource) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchQueries...)
}

type fakePrefs struct {
	prefs map[string]*core.UserPreferences
}

func (f *fakePrefs) Preferences(_ context.Context, userID string) (*core.UserPreferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return core.DefaultPreferences(), nil
}

func (f *fakePrefs) SavePreferences(_ context.Context, _ string, _ *core.UserPreferences) error {
	return nil
}

type fakeDiscovery struct{}

func (fakeDiscovery) FirstSeen(_ context.Context, _ string) (time.Time, error) {
	return time.Time{}, nil
}

func newTestAssembler(source *fakeSource, prefs core.PreferenceStore) *Assembler {
	logger := zap.NewNop()
	classifier := classify.NewClassifier(source, logger)

	return NewAssembler(
		source,
		prefs,
		fakeDiscovery{},
		scoring.NewScorer(),
		genre.NewEnricher(source, nil, logger),
		dedup.NewDeduplicator(classifier, logger),
		core.DefaultConfig().Discovery,
		logger,
	)
}

func chartSource() *fakeSource {
	return &fakeSource{
		topArtists: []core.ArtistInfo{
			{Name: "Hollow Meridian"},
			{Name: "Arena Act"},
			{Name: "Static Bloom"},
		},
		artists: map[string]*core.ArtistInfo{
			"Hollow Meridian": {Name: "Hollow Meridian", Listeners: 5_000, Tags: []string{"idm"}},
			"Arena Act":       {Name: "Arena Act", Listeners: 2_000_000, Tags: []string{"pop"}},
			"Static Bloom":    {Name: "Static Bloom", Listeners: 80_000, Tags: []string{"indie"}},
		},
		topTracks: map[string][]core.TrackInfo{
			"Hollow Meridian": {{Name: "Glass Orbit", Listeners: 5_000}},
			"Arena Act":       {{Name: "Chart Anthem", Listeners: 2_000_000}},
			"Static Bloom":    {{Name: "Red Shift", Listeners: 80_000}},
		},
	}
}

func TestAssembler_Recommendations(t *testing.T) {
	source := chartSource()
	assembler := newTestAssembler(source, &fakePrefs{})

	result, err := assembler.Recommendations(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Recommendations() error: %v", err)
	}

	if len(result.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2 (mainstream dropped)", len(result.Tracks))
	}
	if result.Tracks[0].Artist != "Hollow Meridian" {
		t.Errorf("top track by %q, want Hollow Meridian first", result.Tracks[0].Artist)
	}
	for i := range result.Tracks {
		if result.Tracks[i].Artist == "Arena Act" {
			t.Error("mainstream artist survived the pipeline")
		}
		if result.Tracks[i].Genre == "" {
			t.Errorf("track %d has no genre", i)
		}
		if !result.Tracks[i].FitsPreference {
			t.Errorf("track %d does not fit the default preference", i)
		}
	}
}

func TestAssembler_Recommendations_FavoriteArtistRescue(t *testing.T) {
	source := chartSource()
	prefs := &fakePrefs{prefs: map[string]*core.UserPreferences{
		"user1": {
			FavoriteGenres:   []string{"idm"},
			UndergroundLevel: 90,
			FavoriteArtists:  []core.FavoriteArtist{{Name: "Static Bloom"}},
		},
	}}
	assembler := newTestAssembler(source, prefs)

	result, err := assembler.Recommendations(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Recommendations() error: %v", err)
	}

	if len(result.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(result.Tracks))
	}

	first, second := result.Tracks[0], result.Tracks[1]

	// High scorer fits a 90 level and matches the favorite genre.
	if first.Artist != "Hollow Meridian" {
		t.Fatalf("first track by %q, want Hollow Meridian", first.Artist)
	}
	if first.GenreMatchScore != genreMatchPoints {
		t.Errorf("GenreMatchScore = %d, want %d", first.GenreMatchScore, genreMatchPoints)
	}

	// Low scorer does not fit but is rescued as a favorite artist.
	if second.Artist != "Static Bloom" {
		t.Fatalf("second track by %q, want Static Bloom", second.Artist)
	}
	if second.FitsPreference {
		t.Error("rescued track should not be marked as fitting")
	}
	if second.ArtistMatchScore != favoriteArtistRescue {
		t.Errorf("ArtistMatchScore = %d, want %d", second.ArtistMatchScore, favoriteArtistRescue)
	}
}

func TestAssembler_Recommendations_FallbackOnChartFailure(t *testing.T) {
	source := &fakeSource{
		topArtistsErr: errors.New("chart unavailable"),
		artists: map[string]*core.ArtistInfo{
			"Cloud Nine Collective": {Name: "Cloud Nine Collective", Listeners: 5_000, Tags: []string{"trap"}},
			"Big Pop Act":           {Name: "Big Pop Act", Listeners: 800_000, Tags: []string{"pop"}},
		},
		topTracks: map[string][]core.TrackInfo{
			"Cloud Nine Collective": {{Name: "Night Drift", Listeners: 5_000}},
			"Big Pop Act":           {{Name: "Pale Signal", Listeners: 800_000}},
		},
		searchResults: map[string][]core.ArtistInfo{
			"underground trap": {
				{Name: "Cloud Nine Collective"},
				{Name: "Big Pop Act"},
			},
		},
	}
	prefs := &fakePrefs{prefs: map[string]*core.UserPreferences{
		"user1": {FavoriteGenres: []string{"trap"}, UndergroundLevel: 50},
	}}
	assembler := newTestAssembler(source, prefs)

	result, err := assembler.Recommendations(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Recommendations() error: %v", err)
	}

	if len(result.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1 (only the high scorer clears the fallback floor)", len(result.Tracks))
	}
	if result.Tracks[0].Artist != "Cloud Nine Collective" {
		t.Errorf("fallback kept %q, want Cloud Nine Collective", result.Tracks[0].Artist)
	}
	if result.Tracks[0].Source != sourceFallback {
		t.Errorf("Source = %q, want %q", result.Tracks[0].Source, sourceFallback)
	}

	queries := source.queries()
	if len(queries) == 0 || queries[0] != "underground trap" {
		t.Errorf("queries = %v, want genre-derived query first", queries)
	}
}

func TestAssembler_Recommendations_FallbackRanksByGenreMatch(t *testing.T) {
	source := &fakeSource{
		topArtistsErr: errors.New("chart unavailable"),
		artists: map[string]*core.ArtistInfo{
			"Velvet Crypt": {Name: "Velvet Crypt", Listeners: 5_000, Tags: []string{"trap"}},
			"Idm Unit": {
				Name:      "Idm Unit",
				Listeners: 5_000,
				Tags:      []string{"idm"},
				Bio: "A long-running collective releasing warped rhythms on small imprints, " +
					"better known from late-night sets than from any chart placement anywhere.",
				ImageURL: "https://example.com/unit.jpg",
			},
		},
		topTracks: map[string][]core.TrackInfo{
			"Velvet Crypt": {{Name: "Cellar Door", Listeners: 5_000}},
			"Idm Unit":     {{Name: "Grey Lattice", Listeners: 5_000}},
		},
		searchResults: map[string][]core.ArtistInfo{
			"underground trap": {{Name: "Velvet Crypt"}},
			"indie music":      {{Name: "Idm Unit"}},
		},
	}
	prefs := &fakePrefs{prefs: map[string]*core.UserPreferences{
		"user1": {FavoriteGenres: []string{"trap"}, UndergroundLevel: 50},
	}}
	assembler := newTestAssembler(source, prefs)

	result, err := assembler.Recommendations(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Recommendations() error: %v", err)
	}

	if len(result.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(result.Tracks))
	}

	first, second := result.Tracks[0], result.Tracks[1]

	// The favorite-genre match must outrank a higher raw underground score.
	if first.Artist != "Velvet Crypt" {
		t.Fatalf("first track by %q, want Velvet Crypt", first.Artist)
	}
	if first.GenreMatchScore != genreMatchPoints {
		t.Errorf("GenreMatchScore = %d, want %d", first.GenreMatchScore, genreMatchPoints)
	}
	if second.Artist != "Idm Unit" {
		t.Fatalf("second track by %q, want Idm Unit", second.Artist)
	}
	if second.UndergroundScore <= first.UndergroundScore {
		t.Errorf("fixture lost its point: second underground score %d should exceed first %d",
			second.UndergroundScore, first.UndergroundScore)
	}
	if first.RankScore() <= second.RankScore() {
		t.Errorf("rank scores not ordered: %d vs %d", first.RankScore(), second.RankScore())
	}
}

func TestAssembler_Recommendations_FallbackFetchesMultipleTracksPerArtist(t *testing.T) {
	source := &fakeSource{
		topArtistsErr: errors.New("chart unavailable"),
		artists: map[string]*core.ArtistInfo{
			"Crimson Annex": {Name: "Crimson Annex", Listeners: 5_000, Tags: []string{"experimental"}},
		},
		topTracks: map[string][]core.TrackInfo{
			"Crimson Annex": {
				{Name: "Iron Garden", Listeners: 5_000},
				{Name: "Bone Orchard", Listeners: 5_000},
				{Name: "Salt Circle", Listeners: 5_000},
			},
		},
		searchResults: map[string][]core.ArtistInfo{
			"underground hip-hop": {{Name: "Crimson Annex"}},
		},
	}
	assembler := newTestAssembler(source, &fakePrefs{})

	result, err := assembler.Recommendations(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Recommendations() error: %v", err)
	}

	if len(result.Tracks) != 3 {
		t.Fatalf("got %d tracks, want all 3 top tracks of the fallback artist", len(result.Tracks))
	}
	for i := range result.Tracks {
		if result.Tracks[i].Source != sourceFallback {
			t.Errorf("track %d Source = %q, want %q", i, result.Tracks[i].Source, sourceFallback)
		}
	}
}

func TestAssembler_Search(t *testing.T) {
	source := &fakeSource{
		artists: map[string]*core.ArtistInfo{
			"Hollow Meridian": {Name: "Hollow Meridian", Listeners: 5_000, Tags: []string{"shoegaze"}},
			"Static Bloom":    {Name: "Static Bloom", Listeners: 80_000, Tags: []string{"indie"}},
		},
		topTracks: map[string][]core.TrackInfo{
			"Hollow Meridian": {
				{Name: "Glass Orbit", Listeners: 5_000},
				{Name: "Pale Signal", Listeners: 4_000},
			},
			"Static Bloom": {{Name: "Red Shift", Listeners: 80_000}},
		},
		searchResults: map[string][]core.ArtistInfo{
			"shoegaze": {
				{Name: "Hollow Meridian"},
				{Name: "Static Bloom"},
			},
		},
	}
	assembler := newTestAssembler(source, &fakePrefs{})

	result, err := assembler.Search(context.Background(), "shoegaze")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(result.Tracks))
	}
	for i := 1; i < len(result.Tracks); i++ {
		if result.Tracks[i-1].UndergroundScore < result.Tracks[i].UndergroundScore {
			t.Errorf("tracks not sorted by score at %d: %d < %d",
				i, result.Tracks[i-1].UndergroundScore, result.Tracks[i].UndergroundScore)
		}
	}
	if result.Tracks[0].SearchQuery != "shoegaze" {
		t.Errorf("SearchQuery = %q, want shoegaze", result.Tracks[0].SearchQuery)
	}
}

func TestAssembler_Search_BlankQuery(t *testing.T) {
	source := &fakeSource{}
	assembler := newTestAssembler(source, &fakePrefs{})

	result, err := assembler.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Tracks) != 0 {
		t.Errorf("got %d tracks for blank query, want 0", len(result.Tracks))
	}
	if len(source.queries()) != 0 {
		t.Error("blank query should not hit the metadata source")
	}
}

func TestAssembler_GenerationIncreases(t *testing.T) {
	assembler := newTestAssembler(&fakeSource{}, &fakePrefs{})

	first, _ := assembler.Search(context.Background(), "")
	second, _ := assembler.Search(context.Background(), "")

	if second.Generation <= first.Generation {
		t.Errorf("generations not increasing: %d then %d", first.Generation, second.Generation)
	}
}

func TestFallbackQueries(t *testing.T) {
	tests := []struct {
		name     string
		genres   []string
		max      int
		expected []string
	}{
		{
			name:   "No favorites gets generics",
			genres: nil,
			max:    8,
			expected: []string{
				"underground hip-hop", "indie music", "experimental electronic",
			},
		},
		{
			name:   "Expanded genre",
			genres: []string{"experimental"},
			max:    8,
			expected: []string{
				"experimental music", "avant-garde",
				"underground hip-hop", "indie music", "experimental electronic",
			},
		},
		{
			name:   "Unknown genre gets underground prefix",
			genres: []string{"Polka"},
			max:    8,
			expected: []string{
				"underground polka",
				"underground hip-hop", "indie music", "experimental electronic",
			},
		},
		{
			name:   "Capped",
			genres: []string{"trap", "jazz", "alternative"},
			max:    4,
			expected: []string{
				"underground trap", "lo-fi trap", "cloud rap", "experimental jazz",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fallbackQueries(tt.genres, tt.max)
			if len(got) != len(tt.expected) {
				t.Fatalf("fallbackQueries() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("query %d = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestGenreMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		genre     string
		favorites []string
		expected  int
	}{
		{"No favorites", "idm, underground", nil, 0},
		{"Single match", "idm, underground", []string{"idm"}, 20},
		{"Two matches", "idm, ambient, underground", []string{"idm", "ambient"}, 40},
		{"Substring both ways", "trap", []string{"underground trap"}, 20},
		{"No overlap", "idm", []string{"country"}, 0},
		{"Empty genre", "", []string{"idm"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := genreMatchScore(tt.genre, tt.favorites); got != tt.expected {
				t.Errorf("genreMatchScore(%q, %v) = %d, want %d", tt.genre, tt.favorites, got, tt.expected)
			}
		})
	}
}

func TestFitsPreference(t *testing.T) {
	tests := []struct {
		level    int
		score    int
		expected bool
	}{
		{90, 60, true},
		{90, 59, false},
		{75, 60, true},
		{50, 30, true},
		{50, 29, false},
		{74, 30, true},
		{25, 0, true},
		{0, 0, true},
	}

	for _, tt := range tests {
		if got := fitsPreference(tt.level, tt.score); got != tt.expected {
			t.Errorf("fitsPreference(%d, %d) = %v, want %v", tt.level, tt.score, got, tt.expected)
		}
	}
}

func TestIsFavoriteArtist(t *testing.T) {
	favorites := []core.FavoriteArtist{{Name: "Nova"}, {Name: "Hollow Meridian"}}

	tests := []struct {
		name     string
		artist   string
		expected bool
	}{
		{"Exact match", "Nova", true},
		{"Case and space insensitive", "  hollow meridian ", true},
		{"Favorite inside a longer name does not match", "Supernova Cult", false},
		{"Longer favorite does not match a shorter name", "Hollow", false},
		{"Empty artist", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFavoriteArtist(tt.artist, favorites); got != tt.expected {
				t.Errorf("isFavoriteArtist(%q) = %v, want %v", tt.artist, got, tt.expected)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	tracks := make([]core.Track, 45)
	for i := range tracks {
		tracks[i].ID = string(rune('a' + i%26))
	}

	tests := []struct {
		name      string
		page      int
		pageSize  int
		wantCount int
	}{
		{"First page", 1, 20, 20},
		{"Middle page", 2, 20, 20},
		{"Short last page", 3, 20, 5},
		{"Past the end", 4, 20, 0},
		{"Zero page clamps to first", 0, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta := Paginate(tracks, tt.page, tt.pageSize)
			if len(got) != tt.wantCount {
				t.Errorf("Paginate() returned %d tracks, want %d", len(got), tt.wantCount)
			}
			if meta.Total != 45 {
				t.Errorf("Total = %d, want 45", meta.Total)
			}
			if meta.PageSize != tt.pageSize {
				t.Errorf("PageSize = %d, want %d", meta.PageSize, tt.pageSize)
			}
		})
	}
}
