package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

func newTestLastFM(t *testing.T, handler http.HandlerFunc) (*LastFM, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewLastFM(&core.LastFMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, zap.NewNop())

	return client, server
}

func TestLastFM_ArtistInfo(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != "artist.getinfo" {
			t.Errorf("method = %q, want artist.getinfo", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q, want test-key", got)
		}
		w.Write([]byte(`{
			"artist": {
				"name": "Hollow Meridian",
				"mbid": "abc-123",
				"stats": {"listeners": "5231", "playcount": "48210"},
				"tags": {"tag": [{"name": "shoegaze"}, {"name": "dream pop"}]},
				"bio": {"summary": "A band."},
				"image": [
					{"#text": "https://img.example/small.png", "size": "small"},
					{"#text": "https://img.example/xl.png", "size": "extralarge"}
				]
			}
		}`))
	})

	info, err := client.ArtistInfo(context.Background(), "Hollow Meridian")
	if err != nil {
		t.Fatalf("ArtistInfo() error: %v", err)
	}

	if info.Listeners != 5231 {
		t.Errorf("Listeners = %d, want 5231", info.Listeners)
	}
	if info.Playcount != 48210 {
		t.Errorf("Playcount = %d, want 48210", info.Playcount)
	}
	if len(info.Tags) != 2 || info.Tags[0] != "shoegaze" {
		t.Errorf("Tags = %v, want [shoegaze dream pop]", info.Tags)
	}
	if info.ImageURL != "https://img.example/xl.png" {
		t.Errorf("ImageURL = %q, want the extralarge image", info.ImageURL)
	}
}

func TestLastFM_ArtistInfo_Cached(t *testing.T) {
	requests := 0
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Write([]byte(`{"artist": {"name": "Hollow Meridian", "stats": {"listeners": "100", "playcount": "200"}}}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := client.ArtistInfo(context.Background(), "Hollow Meridian"); err != nil {
			t.Fatalf("ArtistInfo() error: %v", err)
		}
	}

	if requests != 1 {
		t.Errorf("made %d requests, want 1 (cached)", requests)
	}
}

func TestLastFM_SearchArtists(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != "artist.search" {
			t.Errorf("method = %q, want artist.search", got)
		}
		w.Write([]byte(`{
			"results": {
				"artistmatches": {
					"artist": [
						{"name": "Hollow Meridian", "listeners": "5231"},
						{"name": "Hollow Moon", "listeners": "not-a-number"}
					]
				}
			}
		}`))
	})

	artists, err := client.SearchArtists(context.Background(), "hollow", 10)
	if err != nil {
		t.Fatalf("SearchArtists() error: %v", err)
	}

	if len(artists) != 2 {
		t.Fatalf("SearchArtists() returned %d artists, want 2", len(artists))
	}
	if artists[0].Listeners != 5231 {
		t.Errorf("artists[0].Listeners = %d, want 5231", artists[0].Listeners)
	}
	if artists[1].Listeners != 0 {
		t.Errorf("artists[1].Listeners = %d, want 0 for unparsable count", artists[1].Listeners)
	}
}

func TestLastFM_TopTracks(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("method"); got != "artist.gettoptracks" {
			t.Errorf("method = %q, want artist.gettoptracks", got)
		}
		w.Write([]byte(`{
			"toptracks": {
				"track": [
					{"name": "Glass Orbit", "listeners": "1200", "playcount": "9000"},
					{"name": "Red Shift", "listeners": "800", "playcount": "4100"}
				]
			}
		}`))
	})

	tracks, err := client.TopTracks(context.Background(), "Hollow Meridian", 3)
	if err != nil {
		t.Fatalf("TopTracks() error: %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("TopTracks() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].Name != "Glass Orbit" || tracks[0].Listeners != 1200 {
		t.Errorf("tracks[0] = %+v, want Glass Orbit with 1200 listeners", tracks[0])
	}
	if tracks[1].Artist != "Hollow Meridian" {
		t.Errorf("tracks[1].Artist = %q, want Hollow Meridian", tracks[1].Artist)
	}
}

func TestLastFM_TrackInfo(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"track": {
				"name": "Glass Orbit",
				"artist": {"name": "Hollow Meridian"},
				"duration": "215000",
				"toptags": {"tag": [{"name": "shoegaze"}]}
			}
		}`))
	})

	info, err := client.TrackInfo(context.Background(), "Hollow Meridian", "Glass Orbit")
	if err != nil {
		t.Fatalf("TrackInfo() error: %v", err)
	}

	if info.Duration != 215*time.Second {
		t.Errorf("Duration = %v, want 3m35s", info.Duration)
	}
	if len(info.Tags) != 1 || info.Tags[0] != "shoegaze" {
		t.Errorf("Tags = %v, want [shoegaze]", info.Tags)
	}
}

func TestLastFM_APIError(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": 6, "message": "Artist not found"}`))
	})

	if _, err := client.ArtistInfo(context.Background(), "Nobody"); err == nil {
		t.Error("expected error for API error response")
	}
}

func TestLastFM_HTTPError(t *testing.T) {
	client, _ := newTestLastFM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := client.TopArtists(context.Background(), 30); err == nil {
		t.Error("expected error for HTTP 503")
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"12345", 12345},
		{"0", 0},
		{"", 0},
		{"n/a", 0},
	}

	for _, tt := range tests {
		if got := parseCount(tt.input); got != tt.expected {
			t.Errorf("parseCount(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
