package core

import (
	"time"
)

type Config struct {
	Source    SourceConfig
	LastFM    LastFMConfig
	Spotify   SpotifyConfig
	Tagger    TaggerConfig
	Prefs     PrefsConfig
	Server    ServerConfig
	Log       LogConfig
	Discovery DiscoveryConfig
}

type SourceConfig struct {
	Provider string // "lastfm" or "spotify"
}

type LastFMConfig struct {
	APIKey  string
	BaseURL string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

type TaggerConfig struct {
	Provider string // "openai", "anthropic", "none"
	Model    string
	APIKey   string
	BaseURL  string
}

type PrefsConfig struct {
	Path string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type DiscoveryConfig struct {
	TrendingArtists         int // trending-chart artists fetched per recommendation run
	SearchArtists           int // artists fetched per search query
	SearchTracksPerArtist   int // top tracks fetched per matched artist
	FanOut                  int // concurrent metadata lookups during candidate fetch
	MaxFallbackQueries      int // cap on derived underground search queries
	FallbackArtistLimit     int // artists fetched per fallback query
	FallbackTracksPerArtist int // top tracks fetched per fallback artist
	FallbackMinScore        int // minimum underground score for fallback tracks
	FallbackTrackCap        int // total fallback tracks collected
	PageSize                int
	RatePerMinute           int // per-client API request limit
}

func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Provider: "lastfm",
		},
		LastFM: LastFMConfig{
			BaseURL: "https://ws.audioscrobbler.com/2.0/",
		},
		Tagger: TaggerConfig{
			Provider: "none",
		},
		Prefs: PrefsConfig{
			Path: "./undergroundfm.db",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Discovery: DiscoveryConfig{
			TrendingArtists:         30,
			SearchArtists:           50,
			SearchTracksPerArtist:   3,
			FanOut:                  8,
			MaxFallbackQueries:      8,
			FallbackArtistLimit:     10,
			FallbackTracksPerArtist: 3,
			FallbackMinScore:        60,
			FallbackTrackCap:        50,
			PageSize:                20,
			RatePerMinute:           30,
		},
	}
}
