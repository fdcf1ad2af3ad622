package translate

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// implements Translator using Anthropic Claude
type AnthropicTranslator struct {
	client  anthropic.Client
	model   anthropic.Model
	options Options
}

func NewAnthropicTranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*AnthropicTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicTranslator{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *AnthropicTranslator) Translate(
	ctx context.Context,
	items []TranslationItem,
) ([]TranslationResult, error) {
	return runBatches(ctx, items, t.options.batchSize(), 1, t.translateBatch)
}

func (t *AnthropicTranslator) TranslateWithConcurrency(
	ctx context.Context,
	items []TranslationItem,
	concurrency int,
) ([]TranslationResult, error) {
	return runBatches(ctx, items, t.options.batchSize(), concurrency, t.translateBatch)
}

func (t *AnthropicTranslator) translateBatch(
	ctx context.Context,
	items []TranslationItem,
) ([]TranslationResult, error) {
	prompt := BuildPrompt(t.options, items)

	message, err := t.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     t.model,
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return t.parseResponse(message, len(items))
}

func (t *AnthropicTranslator) parseResponse(
	message *anthropic.Message,
	expectedCount int,
) ([]TranslationResult, error) {
	if message == nil || len(message.Content) == 0 {
		return nil, fmt.Errorf("empty response from Anthropic")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	return decodeResults("Anthropic", responseText, expectedCount)
}

func (t *AnthropicTranslator) Close() error {
	return nil
}
