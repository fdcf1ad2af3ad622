package subtitle

import (
	"strings"

	"github.com/mgpai22/subconv/internal/token"
)

// Run is one text node of a tokenized cue. Replacing run text in place
// keeps the surrounding styles intact.
type Run struct {
	Cue  *Cue
	node *token.Node
}

// Runs lists the text runs of every tokenized cue in document order.
func Runs(cues []*Cue) []Run {
	var runs []Run
	for _, cue := range cues {
		if cue.Tree == nil {
			continue
		}
		for n := range cue.Tree.Root.All() {
			if n.Kind == token.KindText {
				runs = append(runs, Run{Cue: cue, node: n})
			}
		}
	}
	return runs
}

func (r Run) Text() string {
	return r.node.Text
}

// Set replaces the run text. Line breaks belong to the tree, so any in
// text are folded into spaces; an empty replacement is ignored.
func (r Run) Set(text string) {
	text = strings.Join(strings.Fields(strings.ReplaceAll(text, "\n", " ")), " ")
	if text == "" {
		return
	}
	if strings.HasPrefix(r.node.Text, " ") {
		text = " " + text
	}
	if strings.HasSuffix(r.node.Text, " ") {
		text += " "
	}
	r.node.Text = text
}
