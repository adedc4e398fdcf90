// Package source provides artist and track metadata backends for the
// discovery pipeline.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

// NewSource creates a metadata source based on the configured provider.
func NewSource(ctx context.Context, config *core.Config, logger *zap.Logger) (core.MetadataSource, error) {
	switch config.Source.Provider {
	case "lastfm":
		if config.LastFM.APIKey == "" {
			return nil, fmt.Errorf("lastfm API key is required")
		}
		return NewLastFM(&config.LastFM, logger.Named("lastfm")), nil
	case "spotify":
		if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
			return nil, fmt.Errorf("spotify client credentials are required")
		}
		return NewSpotify(ctx, &config.Spotify, logger.Named("spotify")), nil
	default:
		return nil, fmt.Errorf("unknown metadata source provider: %s", config.Source.Provider)
	}
}
