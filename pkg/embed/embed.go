// Package embed builds playback and search URLs for tracks that have no
// direct stream link of their own.
package embed

import (
	"net/url"
)

const (
	soundCloudSearchBase = "https://soundcloud.com/search"
	youTubeSearchBase    = "https://www.youtube.com/results"
	soundCloudPlayerBase = "https://w.soundcloud.com/player/"

	playerColor = "ff5500"
)

// SoundCloudSearchURL links to a SoundCloud search for the track. Used as
// the stream and permalink URL for metadata-sourced tracks.
func SoundCloudSearchURL(artist, title string) string {
	return soundCloudSearchBase + "?q=" + url.QueryEscape(artist+" "+title)
}

// YouTubeSearchURL links to a YouTube search for the track.
func YouTubeSearchURL(artist, title string) string {
	return youTubeSearchBase + "?search_query=" + url.QueryEscape(artist+" "+title)
}

// SoundCloudPlayerURL wraps a track permalink in the embeddable widget
// player with related content, comments and reposts hidden.
func SoundCloudPlayerURL(permalink string) string {
	params := url.Values{}
	params.Set("url", permalink)
	params.Set("auto_play", "false")
	params.Set("hide_related", "true")
	params.Set("show_comments", "false")
	params.Set("show_user", "false")
	params.Set("show_reposts", "false")
	params.Set("visual", "true")
	params.Set("color", playerColor)

	return soundCloudPlayerBase + "?" + params.Encode()
}
