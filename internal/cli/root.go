package cli

import (
	"context"

	"github.com/mgpai22/subconv/internal/logging"
	"github.com/mgpai22/subconv/internal/subtitle"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	strict   bool
	fps      float64
	encoding string
	logger   = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "subconv",
	Short: "Convert subtitles between formats without losing styling",
	Long: `Subconv converts subtitle files between MicroDVD, MPL2, SubRip, ASS and
WebVTT. Inline styling (italics, bold, underline, fonts and colors) is parsed
into a format independent token tree and rendered again in the target format.

It can also translate subtitles with AI while keeping the styling intact and
extract text subtitle streams from video files.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

func Execute(ctx context.Context) error {
	defer func() {
		_ = logger.Sync()
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringP("output", "o", "", "Output file path (- for stdout)")
	rootCmd.PersistentFlags().
		Float64Var(&fps, "fps", subtitle.DefaultFPS, "Frame rate for frame based formats (MicroDVD)")
	rootCmd.PersistentFlags().
		StringVarP(&encoding, "encoding", "e", "", "Input character set (e.g., windows-1250, iso-8859-2), default UTF-8")
	rootCmd.PersistentFlags().
		BoolVar(&strict, "strict", false, "Fail on styles left open at the end of a cue instead of closing them")
}

func metadata() subtitle.Metadata {
	meta := subtitle.DefaultMetadata()
	meta.FPS = fps
	meta.Encoding = encoding
	return meta
}
