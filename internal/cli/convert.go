package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mgpai22/subconv/internal/subtitle"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert [subtitle_file]",
	Short: "Convert a subtitle file to another format",
	Long: `Convert a subtitle file to another format, keeping inline styling.

The input format is taken from --from, the file extension or, failing that,
detected from the content. The target format is taken from --to or the
output file extension. Use - as the input to read stdin.

Supported formats: ` + strings.Join(subtitle.DefaultRegistry.Names(), ", ") + `

Examples:
  subconv convert movie.sub --to srt
  subconv convert movie.srt -o movie.ass
  subconv convert movie.txt --from mpl2 --to vtt --encoding windows-1250
  cat movie.srt | subconv convert - --to microdvd --fps 25`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().
		StringP("to", "t", "", "Target format (srt, vtt, ass, microdvd, mpl2)")
	convertCmd.Flags().
		StringP("from", "f", "", "Input format, skips detection")
	convertCmd.Flags().
		Bool("skip-invalid", false, "Drop cues with invalid markup instead of failing")
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	to, _ := cmd.Flags().GetString("to")
	from, _ := cmd.Flags().GetString("from")
	skipInvalid, _ := cmd.Flags().GetBool("skip-invalid")
	outputPath, _ := cmd.Flags().GetString("output")

	doc, err := readDocument(inputPath, from, cmd.InOrStdin())
	if err != nil {
		return err
	}

	target, err := resolveTarget(to, outputPath, doc.Format)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = defaultOutput(inputPath, "", target)
		if outputPath == inputPath && inputPath != stdio {
			return fmt.Errorf("output would overwrite %s: use --output", inputPath)
		}
	}

	logger.Infow("Converting subtitles",
		"input", inputPath,
		"output", outputPath,
		"from", doc.Format.Name(),
		"to", target.Name(),
		"cues", len(doc.Cues),
	)

	ctx := cmd.Context()
	var out bytes.Buffer
	convErr := subtitle.DefaultRegistry.Convert(
		ctx,
		&out,
		doc,
		target,
		metadata(),
		strict,
		skipInvalid,
	)

	reportCues(doc, convErr)
	if convErr != nil && (!skipInvalid || len(cueErrors(convErr)) == 0 || ctx.Err() != nil) {
		return fmt.Errorf("conversion failed: %w", convErr)
	}
	if err := writeOutput(outputPath, out.Bytes(), cmd.OutOrStdout()); err != nil {
		return err
	}

	if outputPath != stdio {
		absOutput, _ := filepath.Abs(outputPath)
		fmt.Fprintf(cmd.ErrOrStderr(), "Subtitles converted successfully: %s\n", absOutput)
	}
	return nil
}
