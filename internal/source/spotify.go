package source

import (
	"context"
	"fmt"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"undergroundfm/internal/core"
)

// topTracksMarket is the market parameter required by the top-tracks endpoint.
const topTracksMarket = "US"

// Spotify is the Web API backed metadata source. It runs on the
// client-credentials flow, so only public catalog data is reachable: no
// playcounts, and follower counts stand in for listeners.
type Spotify struct {
	client *spotify.Client
	logger *zap.Logger
}

func NewSpotify(ctx context.Context, config *core.SpotifyConfig, logger *zap.Logger) *Spotify {
	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return &Spotify{
		client: spotify.New(credentials.Client(ctx)),
		logger: logger,
	}
}

func (s *Spotify) SearchArtists(ctx context.Context, query string, limit int) ([]core.ArtistInfo, error) {
	results, err := s.client.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("artist search failed: %w", err)
	}
	if results.Artists == nil {
		return nil, nil
	}

	artists := make([]core.ArtistInfo, 0, len(results.Artists.Artists))
	for i := range results.Artists.Artists {
		artists = append(artists, convertArtist(&results.Artists.Artists[i]))
	}
	return artists, nil
}

func (s *Spotify) ArtistInfo(ctx context.Context, name string) (*core.ArtistInfo, error) {
	results, err := s.client.Search(ctx, name, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("artist lookup failed: %w", err)
	}
	if results.Artists == nil || len(results.Artists.Artists) == 0 {
		return nil, fmt.Errorf("artist not found: %s", name)
	}

	info := convertArtist(&results.Artists.Artists[0])
	return &info, nil
}

// TopArtists approximates a trending chart from the featured playlists:
// unique artists in playlist order, up to limit.
func (s *Spotify) TopArtists(ctx context.Context, limit int) ([]core.ArtistInfo, error) {
	_, playlists, err := s.client.FeaturedPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("featured playlists failed: %w", err)
	}
	if playlists == nil || len(playlists.Playlists) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var artists []core.ArtistInfo

	for i := range playlists.Playlists {
		if len(artists) >= limit {
			break
		}

		items, err := s.client.GetPlaylistItems(ctx, playlists.Playlists[i].ID, spotify.Limit(50))
		if err != nil {
			s.logger.Warn("failed to fetch featured playlist items",
				zap.String("playlist", playlists.Playlists[i].Name),
				zap.Error(err))
			continue
		}

		for j := range items.Items {
			track := items.Items[j].Track.Track
			if track == nil || len(track.Artists) == 0 {
				continue
			}
			name := track.Artists[0].Name
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			artists = append(artists, core.ArtistInfo{Name: name})
			if len(artists) >= limit {
				break
			}
		}
	}

	return artists, nil
}

func (s *Spotify) TopTracks(ctx context.Context, artist string, limit int) ([]core.TrackInfo, error) {
	results, err := s.client.Search(ctx, artist, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("artist lookup failed: %w", err)
	}
	if results.Artists == nil || len(results.Artists.Artists) == 0 {
		return nil, fmt.Errorf("artist not found: %s", artist)
	}

	tracks, err := s.client.GetArtistsTopTracks(ctx, results.Artists.Artists[0].ID, topTracksMarket)
	if err != nil {
		return nil, fmt.Errorf("top tracks failed: %w", err)
	}

	infos := make([]core.TrackInfo, 0, limit)
	for i := range tracks {
		if len(infos) >= limit {
			break
		}
		infos = append(infos, core.TrackInfo{
			Name:     tracks[i].Name,
			Artist:   artist,
			Duration: time.Duration(tracks[i].Duration) * time.Millisecond,
		})
	}
	return infos, nil
}

func (s *Spotify) TrackInfo(ctx context.Context, artist, track string) (*core.TrackInfo, error) {
	results, err := s.client.Search(ctx, artist+" "+track, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("track lookup failed: %w", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, fmt.Errorf("track not found: %s - %s", artist, track)
	}

	found := &results.Tracks.Tracks[0]
	return &core.TrackInfo{
		Name:     found.Name,
		Artist:   artist,
		Duration: time.Duration(found.Duration) * time.Millisecond,
	}, nil
}

func convertArtist(artist *spotify.FullArtist) core.ArtistInfo {
	info := core.ArtistInfo{
		Name:      artist.Name,
		Listeners: int(artist.Followers.Count),
		Tags:      artist.Genres,
	}
	if len(artist.Images) > 0 {
		info.ImageURL = artist.Images[0].URL
	}
	return info
}
