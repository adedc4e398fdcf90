package embed

import (
	"net/url"
	"strings"
	"testing"
)

func TestSoundCloudSearchURL(t *testing.T) {
	got := SoundCloudSearchURL("Hollow Meridian", "Glass Orbit")

	if !strings.HasPrefix(got, "https://soundcloud.com/search?q=") {
		t.Errorf("SoundCloudSearchURL() = %q, wrong base", got)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("SoundCloudSearchURL() not parseable: %v", err)
	}
	if q := u.Query().Get("q"); q != "Hollow Meridian Glass Orbit" {
		t.Errorf("q = %q, want combined artist and title", q)
	}
}

func TestYouTubeSearchURL(t *testing.T) {
	got := YouTubeSearchURL("Hollow Meridian", "Glass Orbit")

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("YouTubeSearchURL() not parseable: %v", err)
	}
	if q := u.Query().Get("search_query"); q != "Hollow Meridian Glass Orbit" {
		t.Errorf("search_query = %q, want combined artist and title", q)
	}
}

func TestSoundCloudPlayerURL(t *testing.T) {
	permalink := "https://soundcloud.com/hollowmeridian/glass-orbit"
	got := SoundCloudPlayerURL(permalink)

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("SoundCloudPlayerURL() not parseable: %v", err)
	}

	q := u.Query()
	if q.Get("url") != permalink {
		t.Errorf("url = %q, want %q", q.Get("url"), permalink)
	}
	if q.Get("auto_play") != "false" {
		t.Errorf("auto_play = %q, want false", q.Get("auto_play"))
	}
	if q.Get("visual") != "true" {
		t.Errorf("visual = %q, want true", q.Get("visual"))
	}
}
