package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Translator using OpenAI Chat Completions
type OpenAITranslator struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAITranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	return &OpenAITranslator{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranslator) Translate(
	ctx context.Context,
	items []TranslationItem,
) ([]TranslationResult, error) {
	return runBatches(ctx, items, t.options.batchSize(), 1, t.translateBatch)
}

func (t *OpenAITranslator) TranslateWithConcurrency(
	ctx context.Context,
	items []TranslationItem,
	concurrency int,
) ([]TranslationResult, error) {
	return runBatches(ctx, items, t.options.batchSize(), concurrency, t.translateBatch)
}

func (t *OpenAITranslator) translateBatch(
	ctx context.Context,
	items []TranslationItem,
) ([]TranslationResult, error) {
	prompt := BuildPrompt(t.options, items)

	completion, err := t.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: t.model,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return t.parseResponse(completion, len(items))
}

func (t *OpenAITranslator) parseResponse(
	completion *openai.ChatCompletion,
	expectedCount int,
) ([]TranslationResult, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return decodeResults("OpenAI", completion.Choices[0].Message.Content, expectedCount)
}

func (t *OpenAITranslator) Close() error {
	return nil
}
