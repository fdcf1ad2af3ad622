package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [subtitle_file]",
	Short: "Print the format of a subtitle file",
	Long: `Detect the format of a subtitle file from its content and print its name
and number of cues. The file extension is ignored.

Examples:
  subconv detect movie.txt
  subconv detect movie.sub --encoding windows-1250`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	path := args[0]
	doc, err := loadDocument(path, "", cmd.InOrStdin(), true)
	if err != nil {
		return err
	}

	logger.Debugw("Detected format",
		"input", path,
		"format", doc.Format.Name(),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d cues\n", doc.Format.Name(), len(doc.Cues))
	return nil
}
