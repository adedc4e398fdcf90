// Package tagger provides optional LLM-backed genre tagging for tracks
// whose metadata lookups come back empty.
package tagger

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const (
	// maxTags caps how many tags a model response contributes.
	maxTags = 5

	systemPrompt = `You are a music genre expert. Given an artist and track name, respond with the most likely genre tags as JSON.

Return JSON in this exact format:
{
  "tags": ["genre1", "genre2"]
}

Rules:
- Lowercase tags only
- Prefer specific subgenres over broad ones
- Maximum 5 tags
- If you do not recognize the artist, infer from the names alone`
)

// NewTagger creates a genre tagger for the configured provider. The "none"
// provider returns a nil tagger; callers treat that as tagging disabled.
func NewTagger(config *core.TaggerConfig, logger *zap.Logger) (core.GenreTagger, error) {
	switch config.Provider {
	case "openai":
		return NewOpenAITagger(config, logger)
	case "anthropic":
		return NewAnthropicTagger(config, logger)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported tagger provider: %s", config.Provider)
	}
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

// parseTags decodes a model response into a bounded, lowercased tag list.
func parseTags(content string) ([]string, error) {
	var response tagsResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse tagger response: %w", err)
	}

	tags := make([]string, 0, len(response.Tags))
	for _, tag := range response.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) >= maxTags {
			break
		}
	}
	return tags, nil
}

func tagPrompt(artist, title string) string {
	return fmt.Sprintf("Artist: %q\nTrack: %q", artist, title)
}
