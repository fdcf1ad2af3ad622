package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// single styled run to translate
type TranslationItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translated run
type TranslationResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// interface for text translation
type Translator interface {
	Translate(
		ctx context.Context,
		items []TranslationItem,
	) ([]TranslationResult, error)
}

// optional interface for translators that support concurrent batch processing
type ConcurrentTranslator interface {
	Translator
	TranslateWithConcurrency(
		ctx context.Context,
		items []TranslationItem,
		concurrency int,
	) ([]TranslationResult, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists the supported providers in the order they are documented.
var Providers = []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// APIKeyEnv is the environment variable holding the key for a provider.
func APIKeyEnv(p Provider) string {
	switch p {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

const DefaultBatchSize = 50

type Options struct {
	InputLanguage  string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int // items per API request (default 50)
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// creates Translator based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Translator, error) {
	if opts.TargetLanguage == "" {
		return nil, fmt.Errorf("target language is required")
	}

	switch provider {
	case ProviderGemini:
		return NewGeminiTranslator(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranslator(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicTranslator(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

// BuildPrompt creates the translation prompt for LLM providers. Items are
// fragments of subtitle lines split where the styling changes, so the
// model is asked to keep each fragment separate.
func BuildPrompt(opts Options, items []TranslationItem) string {
	var sb strings.Builder

	if opts.InputLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s subtitle fragments to %s.\n\n",
			opts.InputLanguage,
			opts.TargetLanguage,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following subtitle fragments to %s.\n\n",
			opts.TargetLanguage,
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString(
		"1. Consecutive fragments are pieces of one sentence that differ only in styling (italics, bold, color).\n",
	)
	sb.WriteString(
		"2. Translate each fragment so that the fragments read naturally when joined in order.\n",
	)
	sb.WriteString("3. Never merge or split fragments.\n")
	sb.WriteString("4. Do not add markup, tags or line breaks.\n")
	sb.WriteString("5. Return ONLY a JSON array with the same structure.\n")
	sb.WriteString("6. Each object must have 'index' and 'text' fields.\n")
	sb.WriteString(
		"7. The 'index' values must match the input indices exactly.\n",
	)
	sb.WriteString("8. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(
			fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt),
		)
	}

	sb.WriteString("Input JSON:\n")

	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)

	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}
