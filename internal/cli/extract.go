package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/mgpai22/subconv/internal/subtitle"
	"github.com/mgpai22/subconv/internal/video"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [video_file]",
	Short: "Extract a subtitle stream from a video file",
	Long: `Extract an embedded text subtitle stream from a video file and write it in
any supported format. Requires ffmpeg and ffprobe on PATH or set through
SUBCONV_FFMPEG_PATH and SUBCONV_FFPROBE_PATH.

Image based streams (PGS, VobSub) cannot be extracted as text.

Examples:
  subconv extract movie.mkv --list
  subconv extract movie.mkv
  subconv extract movie.mkv --stream 2 --to ass -o movie.ass`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("list", false, "List subtitle streams and exit")
	extractCmd.Flags().
		IntP("stream", "s", 0, "Subtitle stream to extract, as numbered by --list")
	extractCmd.Flags().
		StringP("to", "t", "", "Output format (srt, vtt, ass, microdvd, mpl2), default srt")
}

func runExtract(cmd *cobra.Command, args []string) error {
	videoPath := args[0]
	ctx := cmd.Context()

	list, _ := cmd.Flags().GetBool("list")
	stream, _ := cmd.Flags().GetInt("stream")
	to, _ := cmd.Flags().GetString("to")
	outputPath, _ := cmd.Flags().GetString("output")

	streams, err := video.SubtitleStreams(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("failed to probe video: %w", err)
	}

	if list {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STREAM\tCODEC\tLANGUAGE\tTITLE\tTEXT")
		for _, s := range streams {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", s.Index, s.Codec, s.Language, s.Title, s.IsText())
		}
		return tw.Flush()
	}

	if len(streams) == 0 {
		return fmt.Errorf("no subtitle streams in %s", videoPath)
	}
	if stream < 0 || stream >= len(streams) {
		return fmt.Errorf("stream %d out of range: %s has %d subtitle stream(s)", stream, videoPath, len(streams))
	}
	if !streams[stream].IsText() {
		return fmt.Errorf("stream %d is %s, an image based codec that cannot be extracted as text",
			stream, streams[stream].Codec)
	}

	target, err := resolveTarget(to, outputPath, subtitle.SubRip)
	if err != nil {
		return err
	}

	if outputPath == "" {
		suffix := streams[stream].Language
		if suffix == "" {
			suffix = fmt.Sprintf("%d", stream)
		}
		outputPath = defaultOutput(videoPath, suffix, target)
	}

	logger.Infow("Extracting subtitles",
		"video", videoPath,
		"stream", stream,
		"codec", streams[stream].Codec,
		"output", outputPath,
		"format", target.Name(),
	)

	text, err := video.ExtractSubtitles(ctx, videoPath, stream)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	cues, err := subtitle.SubRip.Parse(strings.NewReader(text), metadata())
	if err != nil {
		return fmt.Errorf("failed to parse extracted subtitles: %w", err)
	}
	doc := &subtitle.Document{Cues: cues, Format: subtitle.SubRip}

	var out bytes.Buffer
	convErr := subtitle.DefaultRegistry.Convert(ctx, &out, doc, target, metadata(), strict, true)

	reportCues(doc, convErr)
	if convErr != nil && (len(cueErrors(convErr)) == 0 || ctx.Err() != nil) {
		return fmt.Errorf("conversion failed: %w", convErr)
	}
	if err := writeOutput(outputPath, out.Bytes(), cmd.OutOrStdout()); err != nil {
		return err
	}

	if outputPath != stdio {
		absOutput, _ := filepath.Abs(outputPath)
		fmt.Fprintf(cmd.ErrOrStderr(), "Subtitles extracted successfully: %s\n", absOutput)
		fmt.Fprintf(cmd.ErrOrStderr(), "  Cues: %d\n", len(cues))
	}
	return nil
}
