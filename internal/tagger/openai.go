package tagger

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const (
	openAITemperature  = 0.1
	openAIMaxTokens    = 200
	openAIDefaultModel = "gpt-3.5-turbo"
)

type OpenAITagger struct {
	config *core.TaggerConfig
	logger *zap.Logger
	client *openai.Client
}

func NewOpenAITagger(config *core.TaggerConfig, logger *zap.Logger) (*OpenAITagger, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(config.APIKey))

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAITagger{
		config: config,
		logger: logger,
		client: &client,
	}, nil
}

func (o *OpenAITagger) Tags(ctx context.Context, artist, title string) ([]string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(tagPrompt(artist, title)),
		},
		Model:       o.getModel(),
		Temperature: openai.Float(openAITemperature),
		MaxTokens:   openai.Int(openAIMaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	tags, err := parseTags(content)
	if err != nil {
		o.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	o.logger.Debug("OpenAI genre tags generated",
		zap.String("artist", artist),
		zap.String("title", title),
		zap.Strings("tags", tags))

	return tags, nil
}

func (o *OpenAITagger) getModel() shared.ChatModel {
	if o.config.Model != "" {
		return o.config.Model
	}
	return openAIDefaultModel
}
