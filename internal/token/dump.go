package token

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
)

var dumpPalette = map[StyleKind]*color.Color{
	Italics:       color.New(color.FgCyan, color.Italic),
	Bold:          color.New(color.FgRed, color.Bold),
	Underline:     color.New(color.FgMagenta, color.Underline),
	Strikethrough: color.New(color.FgYellow, color.CrossedOut),
	FontName:      color.New(color.FgBlue),
	FontSize:      color.New(color.FgBlue),
	FontColor:     color.New(color.FgBlue),
}

var (
	dumpText     = color.New(color.FgGreen)
	dumpBoundary = color.New(color.FgHiBlack)
)

// Dump writes the tree one node per line, indented by depth. Lines longer
// than width are truncated; width <= 0 disables truncation. Colors follow
// color.NoColor.
func Dump(w io.Writer, root *Node, width int) error {
	return dumpNode(w, root, 0, width)
}

func dumpNode(w io.Writer, n *Node, depth, width int) error {
	line := n.String()
	pad := uint(depth * 2)
	if width > 0 && uint(width) > pad+1 {
		line = truncate.StringWithTail(line, uint(width)-pad, "…")
	}

	switch n.Kind {
	case KindText:
		line = dumpText.Sprint(line)
	case KindStyle:
		if c, ok := dumpPalette[n.Style.Kind]; ok {
			line = c.Sprint(line)
		}
	case KindNewline, KindEnd:
		line = dumpBoundary.Sprint(line)
	}

	if _, err := fmt.Fprintln(w, indent.String(line, pad)); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := dumpNode(w, c, depth+1, width); err != nil {
			return err
		}
	}
	return nil
}
