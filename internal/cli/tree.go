package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mgpai22/subconv/internal/subtitle"
	"github.com/mgpai22/subconv/internal/token"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var treeCmd = &cobra.Command{
	Use:   "tree [subtitle_file]",
	Short: "Print the token tree of each cue",
	Long: `Tokenize a subtitle file and print the token tree of every cue, one node
per line. Useful to see how styling is scoped before converting.

Examples:
  subconv tree movie.sub
  subconv tree movie.srt --cue 12
  subconv tree movie.ass --from ass --no-color`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().Int("cue", 0, "Only print the cue with this index")
	treeCmd.Flags().StringP("from", "f", "", "Input format, skips detection")
	treeCmd.Flags().Bool("no-color", false, "Disable colored output")
}

func runTree(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	only, _ := cmd.Flags().GetInt("cue")
	from, _ := cmd.Flags().GetString("from")
	noColor, _ := cmd.Flags().GetBool("no-color")

	doc, err := readDocument(inputPath, from, cmd.InOrStdin())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := 0
	isTerm := false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isTerm = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	color.NoColor = noColor || !isTerm

	tok := subtitle.DefaultRegistry.Tokenizer(strict)
	printed := 0
	for _, cue := range doc.Cues {
		if only != 0 && cue.Index != only {
			continue
		}

		printed++
		fmt.Fprintf(out, "cue %d (%s --> %s)\n", cue.Index, cue.Start, cue.End)
		tree, err := tok.Tokenize(cue.Text)
		if err != nil {
			var unclosed *token.UnclosedError
			if errors.As(err, &unclosed) {
				fmt.Fprintf(out, "  error: %v\n", err)
				continue
			}
			return fmt.Errorf("cue %d: %w", cue.Index, err)
		}
		if err := token.Dump(out, tree.Root, width); err != nil {
			return err
		}
	}

	if only != 0 && printed == 0 {
		return fmt.Errorf("no cue with index %d", only)
	}
	return nil
}
