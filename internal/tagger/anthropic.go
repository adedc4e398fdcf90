package tagger

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const (
	anthropicTemperature  = 0.3
	anthropicMaxTokens    = 200
	anthropicDefaultModel = "claude-3-haiku-20240307"
)

type AnthropicTagger struct {
	config *core.TaggerConfig
	logger *zap.Logger
	client *anthropic.Client
}

func NewAnthropicTagger(config *core.TaggerConfig, logger *zap.Logger) (*AnthropicTagger, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(config.APIKey))

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicTagger{
		config: config,
		logger: logger,
		client: &client,
	}, nil
}

func (a *AnthropicTagger) Tags(ctx context.Context, artist, title string) ([]string, error) {
	model := a.config.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(tagPrompt(artist, title))),
		},
		Temperature: anthropic.Float(anthropicTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API call failed: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("no response from Anthropic")
	}

	content := message.Content[0].Text
	tags, err := parseTags(content)
	if err != nil {
		a.logger.Error("Failed to parse Anthropic response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	a.logger.Debug("Anthropic genre tags generated",
		zap.String("artist", artist),
		zap.String("title", title),
		zap.Strings("tags", tags))

	return tags, nil
}
