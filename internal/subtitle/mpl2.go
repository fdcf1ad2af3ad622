package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mgpai22/subconv/internal/token"
)

// MPL2: [start][end]text|text with times in deciseconds, a leading slash
// makes the line italic
var MPL2 = &mpl2Format{}

type mpl2Format struct{}

var mpl2CueRegex = regexp.MustCompile(`^\[(\d+)\]\[(\d*)\](.*)$`)

const mpl2Tick = 100 * time.Millisecond

func (f *mpl2Format) Name() string { return "mpl2" }

func (f *mpl2Format) Aliases() []string { return []string{"mpl2", "mpl"} }

func (f *mpl2Format) Extensions() []string { return []string{".mpl", ".txt"} }

func (f *mpl2Format) Parse(r io.Reader, meta Metadata) ([]*Cue, error) {
	var cues []*Cue
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}

		matches := mpl2CueRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("invalid MPL2 line %d: %q", lineNum, line)
		}
		start, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid start time at line %d: %w", lineNum, err)
		}
		end := start
		if matches[2] != "" {
			if end, err = strconv.Atoi(matches[2]); err != nil {
				return nil, fmt.Errorf("invalid end time at line %d: %w", lineNum, err)
			}
		}

		cues = append(cues, &Cue{
			Index: len(cues) + 1,
			Start: time.Duration(start) * mpl2Tick,
			End:   time.Duration(end) * mpl2Tick,
			Text:  strings.ReplaceAll(matches[3], "|", "\n"),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading MPL2 file: %w", err)
	}
	return cues, nil
}

func (f *mpl2Format) Write(w io.Writer, cues []*Cue, meta Metadata) error {
	bw := bufio.NewWriter(w)
	for _, cue := range cues {
		if cue.Tree == nil {
			return fmt.Errorf("cue %d is not tokenized", cue.Index)
		}
		fmt.Fprintf(bw, "[%d][%d]%s\n",
			int64(cue.Start/mpl2Tick),
			int64(cue.End/mpl2Tick),
			f.Render(cue.Tree.Root))
	}
	return bw.Flush()
}

// The slash is only markup at the very start of a line, before anything
// has been emitted on it and outside any open style.
func (f *mpl2Format) FindNext(line string, at *token.Node) (token.Match, bool) {
	if !strings.HasPrefix(line, "/") || !atLineStart(at) {
		return token.Match{}, false
	}
	return token.Match{Start: 0, End: 1}, true
}

func atLineStart(at *token.Node) bool {
	if at.Kind != token.KindRoot {
		return false
	}
	last := at.LastChild()
	return last == nil || last.Kind == token.KindNewline
}

func (f *mpl2Format) Materialize(m token.Match, at *token.Node) (*token.Node, error) {
	if m.Text != "/" {
		return nil, &token.MarkupError{Format: f.Name(), Span: m.Text, Reason: "not an italics marker"}
	}
	return at.Append(token.NewStyle(token.Style{Kind: token.Italics, Owner: f})), nil
}

// italics never outlive their line
func (f *mpl2Format) AutoClose(at *token.Node, boundary token.Kind) *token.Node {
	if boundary != token.KindNewline && boundary != token.KindEnd {
		return at
	}
	target := token.Enclosing(at, func(s token.Style) bool { return s.OwnedBy(f) })
	if target == nil {
		return at
	}
	return token.CloseThrough(at, target)
}

// Every line whose text starts inside an italics span gets a slash,
// whatever format opened the span. Other styles cannot be expressed.
func (f *mpl2Format) Render(root *token.Node) string {
	var sb strings.Builder
	italics := 0
	lineStart := true

	for n := range root.All() {
		switch n.Kind {
		case token.KindText:
			if lineStart && italics > 0 {
				sb.WriteString("/")
			}
			sb.WriteString(n.Text)
			lineStart = false
		case token.KindNewline:
			sb.WriteString("|")
			lineStart = true
		case token.KindStyle:
			if n.Style.Kind != token.Italics {
				continue
			}
			if n.Style.Phase == token.Open {
				italics++
			} else if italics > 0 {
				italics--
			}
		}
	}
	return sb.String()
}
