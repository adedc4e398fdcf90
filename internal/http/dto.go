package http

import (
	"fmt"
	"time"

	"undergroundfm/internal/core"
	"undergroundfm/internal/scoring"
	"undergroundfm/pkg/embed"
)

type breakdownDTO struct {
	ListenerPoints   int `json:"listenerPoints"`
	GenrePoints      int `json:"genrePoints"`
	DiscoveryPoints  int `json:"discoveryPoints"`
	IndiePoints      int `json:"indiePoints"`
	EngagementPoints int `json:"engagementPoints"`
}

type trackDTO struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Artist           string       `json:"artist"`
	Genre            string       `json:"genre"`
	Listeners        int          `json:"listeners"`
	ListenersLabel   string       `json:"listenersLabel"`
	Playcount        int          `json:"playcount"`
	Description      string       `json:"description,omitempty"`
	Artwork          string       `json:"artwork,omitempty"`
	DurationMS       int64        `json:"durationMs"`
	DurationLabel    string       `json:"durationLabel"`
	StreamURL        string       `json:"streamUrl"`
	PermalinkURL     string       `json:"permalinkUrl"`
	PlayerURL        string       `json:"playerUrl"`
	YouTubeSearchURL string       `json:"youtubeSearchUrl"`
	Source           string       `json:"source"`
	UndergroundScore int          `json:"undergroundScore"`
	Badge            string       `json:"badge"`
	Breakdown        breakdownDTO `json:"breakdown"`
	GenreMatchScore  int          `json:"genreMatchScore"`
	ArtistMatchScore int          `json:"artistMatchScore"`
	FitsPreference   bool         `json:"fitsPreference"`
}

type resultsDTO struct {
	Tracks []trackDTO `json:"tracks"`
	Page   core.Page  `json:"page"`
}

func toTrackDTO(track *core.Track) trackDTO {
	return trackDTO{
		ID:               track.ID,
		Title:            track.Title,
		Artist:           track.Artist,
		Genre:            track.Genre,
		Listeners:        track.Listeners,
		ListenersLabel:   formatListeners(track.Listeners),
		Playcount:        track.Playcount,
		Description:      track.Description,
		Artwork:          track.Artwork,
		DurationMS:       track.Duration.Milliseconds(),
		DurationLabel:    formatDuration(track.Duration),
		StreamURL:        track.StreamURL,
		PermalinkURL:     track.PermalinkURL,
		PlayerURL:        embed.SoundCloudPlayerURL(track.PermalinkURL),
		YouTubeSearchURL: embed.YouTubeSearchURL(track.Artist, track.Title),
		Source:           track.Source,
		UndergroundScore: track.UndergroundScore,
		Badge:            scoring.Badge(track.UndergroundScore),
		Breakdown: breakdownDTO{
			ListenerPoints:   track.Breakdown.ListenerPoints,
			GenrePoints:      track.Breakdown.GenrePoints,
			DiscoveryPoints:  track.Breakdown.DiscoveryPoints,
			IndiePoints:      track.Breakdown.IndiePoints,
			EngagementPoints: track.Breakdown.EngagementPoints,
		},
		GenreMatchScore:  track.GenreMatchScore,
		ArtistMatchScore: track.ArtistMatchScore,
		FitsPreference:   track.FitsPreference,
	}
}

func toResultsDTO(tracks []core.Track, page core.Page) resultsDTO {
	dtos := make([]trackDTO, 0, len(tracks))
	for i := range tracks {
		dtos = append(dtos, toTrackDTO(&tracks[i]))
	}
	return resultsDTO{Tracks: dtos, Page: page}
}

// formatListeners renders a listener count the way the result cards show
// it: 1.2M, 45.3K, or the raw number under a thousand.
func formatListeners(listeners int) string {
	switch {
	case listeners >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(listeners)/1_000_000)
	case listeners >= 1_000:
		return fmt.Sprintf("%.1fK", float64(listeners)/1_000)
	default:
		return fmt.Sprintf("%d", listeners)
	}
}

// formatDuration renders a track duration as m:ss. Unknown durations
// render as 0:00.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
