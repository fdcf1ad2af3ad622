package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mgpai22/subconv/internal/subtitle"
	"github.com/mgpai22/subconv/internal/translate"
	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate subtitles to another language using AI",
	Long: `Translate a subtitle file to another language using AI.

Every styled run of text is translated on its own and written back into the
cue's token tree, so italics, bold, fonts and colors survive the translation.
The result can be written in any supported format with --to.

Examples:
  subconv translate movie.srt --target-language japanese
  subconv translate movie.sub -t spanish --to srt --provider anthropic
  subconv translate movie.vtt -l english -t german -o movie.de.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

var knownModels = map[translate.Provider][]string{
	translate.ProviderGemini: {
		"gemini-3-pro-preview",
		"gemini-3-flash-preview",
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
	},
	translate.ProviderOpenAI: {
		"o1", "o3-mini", "o1-pro", "o3",
		"gpt-5", "gpt-5-nano", "gpt-5-mini", "gpt-5-pro",
		"gpt-5.1", "gpt-5.2", "gpt-5.2-pro",
	},
	translate.ProviderAnthropic: {
		"claude-haiku-4-5",
		"claude-sonnet-4-5",
		"claude-opus-4-5",
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		StringP("language", "l", "", "Language of the input subtitles (optional)")
	translateCmd.Flags().
		String("to", "", "Output format, defaults to the input format")
	translateCmd.Flags().
		StringP("from", "f", "", "Input format, skips detection")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY env var)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		Bool("model-override", false, "Allow any custom model, bypassing provider model validation")
	translateCmd.Flags().
		String("provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		String("prompt", "", "Extra instructions for the model")
	translateCmd.Flags().
		Int("concurrency", 3, "Number of parallel translation workers")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Number of text runs per API request")
	translateCmd.Flags().
		Bool("skip-invalid", false, "Drop cues with invalid markup instead of failing")

	_ = translateCmd.MarkFlagRequired("target-language")
}

// resolves the API key from the flag or the provider's environment variable
func apiKeyFor(provider translate.Provider, flag string) (string, error) {
	if !slices.Contains(translate.Providers, provider) {
		return "", fmt.Errorf("unsupported translation provider: %s", provider)
	}
	if flag != "" {
		return flag, nil
	}
	envVar := translate.APIKeyEnv(provider)
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf(
		"API key is required: use --api-key flag or set %s environment variable",
		envVar,
	)
}

func validateModel(provider translate.Provider, model string) error {
	if model == "" || slices.Contains(knownModels[provider], model) {
		return nil
	}
	return fmt.Errorf(
		"unsupported %s model %q: valid models are %s (use --model-override to bypass)",
		provider,
		model,
		strings.Join(knownModels[provider], ", "),
	)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	ctx := cmd.Context()

	targetLang, _ := cmd.Flags().GetString("target-language")
	inputLang, _ := cmd.Flags().GetString("language")
	to, _ := cmd.Flags().GetString("to")
	from, _ := cmd.Flags().GetString("from")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	modelOverride, _ := cmd.Flags().GetBool("model-override")
	providerStr, _ := cmd.Flags().GetString("provider")
	prompt, _ := cmd.Flags().GetString("prompt")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	skipInvalid, _ := cmd.Flags().GetBool("skip-invalid")
	outputPath, _ := cmd.Flags().GetString("output")

	targetLang = strings.TrimSpace(targetLang)
	if targetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if inputLang != "" && strings.EqualFold(strings.TrimSpace(inputLang), targetLang) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}

	provider := translate.Provider(strings.ToLower(providerStr))
	apiKey, err := apiKeyFor(provider, apiKey)
	if err != nil {
		return err
	}
	if !modelOverride {
		if err := validateModel(provider, model); err != nil {
			return err
		}
	}

	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	doc, err := readDocument(inputPath, from, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(doc.Cues) == 0 {
		return fmt.Errorf("subtitle file contains no cues")
	}

	target, err := resolveTarget(to, outputPath, doc.Format)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = defaultOutput(inputPath, targetLang, target)
	}

	logger.Infow("Starting subtitle translation",
		"input", inputPath,
		"output", outputPath,
		"format", doc.Format.Name(),
		"target_language", targetLang,
		"input_language", inputLang,
		"provider", provider,
		"model", model,
	)

	tokErr := subtitle.TokenizeAll(
		ctx,
		doc.Cues,
		subtitle.DefaultRegistry.Tokenizer(strict),
		subtitle.DefaultConcurrency,
	)
	reportCues(doc, tokErr)
	if tokErr != nil && (!skipInvalid || len(cueErrors(tokErr)) == 0) {
		return fmt.Errorf("failed to tokenize subtitles: %w", tokErr)
	}

	cues := subtitle.Tokenized(doc.Cues)
	runs := subtitle.Runs(cues)

	translator, err := translate.Factory(ctx, provider, apiKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		Prompt:         prompt,
		BatchSize:      batchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	if closer, ok := translator.(interface{ Close() error }); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	logger.Infow("Translating subtitles",
		"cues", len(cues),
		"runs", len(runs),
		"concurrency", concurrency,
	)

	applied, err := translate.TranslateRuns(ctx, translator, runs, concurrency)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	logger.Infow("Translation complete",
		"translated", applied,
	)

	if outputPath == stdio {
		err = target.Write(cmd.OutOrStdout(), cues, metadata())
	} else {
		err = subtitle.WriteFile(outputPath, target, cues, metadata())
	}
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if outputPath != stdio {
		absOutput, _ := filepath.Abs(outputPath)
		w := cmd.ErrOrStderr()
		fmt.Fprintf(w, "Subtitles translated successfully: %s\n", absOutput)
		fmt.Fprintf(w, "  Cues: %d\n", len(cues))
		fmt.Fprintf(w, "  Target language: %s\n", targetLang)
	}

	return nil
}
