package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mgpai22/subconv/internal/token"
)

// MicroDVD: {start frame}{end frame}text|text
var MicroDVD = &microDVDFormat{}

type microDVDFormat struct{}

// how long a MicroDVD style lasts; uppercase control codes cover all lines
type mdvdScope int

const (
	mdvdOneLine mdvdScope = iota
	mdvdAllLines
)

func (s mdvdScope) String() string {
	if s == mdvdAllLines {
		return "all-lines"
	}
	return "one-line"
}

var (
	mdvdCueRegex   = regexp.MustCompile(`^\{(\d+)\}\{(\d*)\}(.*)$`)
	mdvdStyleRegex = regexp.MustCompile(`\{([yYcCfFsS]):([^{}]*)\}`)
)

type mdvdControl struct {
	code byte
	data string
}

func (f *microDVDFormat) Name() string { return "microdvd" }

func (f *microDVDFormat) Aliases() []string {
	return []string{"microdvd", "mdvd", "sub"}
}

func (f *microDVDFormat) Extensions() []string { return []string{".sub"} }

func (f *microDVDFormat) Parse(r io.Reader, meta Metadata) ([]*Cue, error) {
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

		matches := mdvdCueRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("invalid MicroDVD line %d: %q", lineNum, line)
		}
		start, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid start frame at line %d: %w", lineNum, err)
		}
		end := start
		if matches[2] != "" {
			if end, err = strconv.Atoi(matches[2]); err != nil {
				return nil, fmt.Errorf("invalid end frame at line %d: %w", lineNum, err)
			}
		}

		cues = append(cues, &Cue{
			Index: len(cues) + 1,
			Start: framesToDuration(start, meta.fps()),
			End:   framesToDuration(end, meta.fps()),
			Text:  strings.ReplaceAll(matches[3], "|", "\n"),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading MicroDVD file: %w", err)
	}
	return cues, nil
}

func (f *microDVDFormat) Write(w io.Writer, cues []*Cue, meta Metadata) error {
	bw := bufio.NewWriter(w)
	for _, cue := range cues {
		if cue.Tree == nil {
			return fmt.Errorf("cue %d is not tokenized", cue.Index)
		}
		fmt.Fprintf(bw, "{%d}{%d}%s\n",
			durationToFrames(cue.Start, meta.fps()),
			durationToFrames(cue.End, meta.fps()),
			f.Render(cue.Tree.Root))
	}
	return bw.Flush()
}

func framesToDuration(frames int, fps float64) time.Duration {
	return time.Duration(math.Round(float64(frames) / fps * float64(time.Second)))
}

func durationToFrames(d time.Duration, fps float64) int {
	return int(math.Round(d.Seconds() * fps))
}

func (f *microDVDFormat) FindNext(line string, at *token.Node) (token.Match, bool) {
	loc := mdvdStyleRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return token.Match{}, false
	}
	return token.Match{
		Start: loc[0],
		End:   loc[1],
		Value: mdvdControl{code: line[loc[2]], data: line[loc[4]:loc[5]]},
	}, true
}

func (f *microDVDFormat) Materialize(m token.Match, at *token.Node) (*token.Node, error) {
	ctl, ok := m.Value.(mdvdControl)
	if !ok {
		return nil, f.markupError(m, "not a MicroDVD control code")
	}

	scope := mdvdOneLine
	if ctl.code >= 'A' && ctl.code <= 'Z' {
		scope = mdvdAllLines
	}
	style := token.Style{Owner: f, Private: scope}

	switch ctl.code {
	case 'y', 'Y':
		if strings.TrimSpace(ctl.data) == "" {
			return nil, f.markupError(m, "empty style list")
		}
		for _, letter := range strings.Split(ctl.data, ",") {
			kind, ok := mdvdStyleLetters[strings.ToLower(strings.TrimSpace(letter))]
			if !ok {
				return nil, f.markupError(m, fmt.Sprintf("unknown style %q", letter))
			}
			style.Kind = kind
			at = at.Append(token.NewStyle(style))
		}
		return at, nil
	case 'c', 'C':
		color, err := parseMDVDColor(ctl.data)
		if err != nil {
			return nil, f.markupError(m, err.Error())
		}
		style.Kind = token.FontColor
		style.Color = color
	case 'f', 'F':
		if ctl.data == "" {
			return nil, f.markupError(m, "empty font name")
		}
		style.Kind = token.FontName
		style.Value = ctl.data
	case 's', 'S':
		if _, err := strconv.Atoi(ctl.data); err != nil {
			return nil, f.markupError(m, "font size is not a number")
		}
		style.Kind = token.FontSize
		style.Value = ctl.data
	default:
		return nil, f.markupError(m, "unknown control code")
	}
	return at.Append(token.NewStyle(style)), nil
}

var mdvdStyleLetters = map[string]token.StyleKind{
	"i": token.Italics,
	"b": token.Bold,
	"u": token.Underline,
	"s": token.Strikethrough,
}

// $BBGGRR is the native notation, #RRGGBB is accepted as well
func parseMDVDColor(s string) (token.Color, error) {
	switch {
	case strings.HasPrefix(s, "$"):
		return parseHexColor(s[1:], true)
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s[1:], false)
	default:
		return token.Color{}, fmt.Errorf("color %q: want $BBGGRR or #RRGGBB", s)
	}
}

func (f *microDVDFormat) markupError(m token.Match, reason string) error {
	return &token.MarkupError{Format: f.Name(), Span: m.Text, Reason: reason}
}

// One-line codes end at the next line break and every code ends with the
// cue. Styles nested inside a closing code are reopened after it.
func (f *microDVDFormat) AutoClose(at *token.Node, boundary token.Kind) *token.Node {
	target := token.Enclosing(at, func(s token.Style) bool {
		if !s.OwnedBy(f) {
			return false
		}
		scope, _ := s.Private.(mdvdScope)
		return boundary == token.KindEnd || (boundary == token.KindNewline && scope == mdvdOneLine)
	})
	if target == nil {
		return at
	}
	return token.CloseThrough(at, target)
}

// Control codes may only precede the text of a line. A span that opens
// after text has started is written as a one-line code at the start of each
// following line it covers. Consecutive style codes of the same scope are
// merged into one {y:...} block.
func (f *microDVDFormat) Render(root *token.Node) string {
	type span struct {
		ctl      mdvdControl
		ok       bool
		allLines bool // emitted with an uppercase code
		pending  bool
	}

	var sb strings.Builder
	var open []*span
	var pending []*span
	canWrite := true

	flush := func() {
		var ctls []mdvdControl
		for _, sp := range pending {
			if sp.pending {
				ctls = append(ctls, sp.ctl)
				sp.pending = false
			}
		}
		pending = pending[:0]

		for i := 0; i < len(ctls); i++ {
			ctl := ctls[i]
			if ctl.code == 'y' || ctl.code == 'Y' {
				for i+1 < len(ctls) && ctls[i+1].code == ctl.code {
					i++
					ctl.data += "," + ctls[i].data
				}
			}
			sb.WriteString("{" + string(ctl.code) + ":" + ctl.data + "}")
		}
	}

	queue := func(sp *span, ctl mdvdControl) {
		sp.ctl = ctl
		sp.pending = true
		pending = append(pending, sp)
	}

	for n := range root.All() {
		switch n.Kind {
		case token.KindText:
			flush()
			sb.WriteString(n.Text)
			canWrite = false
		case token.KindNewline:
			flush()
			sb.WriteString("|")
			canWrite = true
			for _, sp := range open {
				if sp.ok && !sp.allLines {
					queue(sp, oneLine(sp.ctl))
				}
			}
		case token.KindStyle:
			if n.Style.Phase == token.Close {
				if len(open) > 0 {
					open[len(open)-1].pending = false
					open = open[:len(open)-1]
				}
				continue
			}
			sp := &span{}
			sp.ctl, sp.ok = f.control(n)
			open = append(open, sp)
			if sp.ok && canWrite {
				sp.allLines = isUpper(sp.ctl.code)
				queue(sp, sp.ctl)
			}
		}
	}
	flush()
	return sb.String()
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func oneLine(ctl mdvdControl) mdvdControl {
	if isUpper(ctl.code) {
		ctl.code = ctl.code - 'A' + 'a'
	}
	return ctl
}

func (f *microDVDFormat) control(n *token.Node) (mdvdControl, bool) {
	scope := mdvdOneLine
	if n.Style.OwnedBy(f) {
		scope, _ = n.Style.Private.(mdvdScope)
	} else if spansNewline(n) {
		scope = mdvdAllLines
	}

	code := func(lower byte) byte {
		if scope == mdvdAllLines {
			return lower - 'a' + 'A'
		}
		return lower
	}

	switch n.Style.Kind {
	case token.Italics:
		return mdvdControl{code: code('y'), data: "i"}, true
	case token.Bold:
		return mdvdControl{code: code('y'), data: "b"}, true
	case token.Underline:
		return mdvdControl{code: code('y'), data: "u"}, true
	case token.Strikethrough:
		return mdvdControl{code: code('y'), data: "s"}, true
	case token.FontName:
		return mdvdControl{code: code('f'), data: n.Style.Value}, true
	case token.FontSize:
		return mdvdControl{code: code('s'), data: n.Style.Value}, true
	case token.FontColor:
		return mdvdControl{code: code('c'), data: "$" + formatHexColor(n.Style.Color, true)}, true
	}
	return mdvdControl{}, false
}

// reports whether the span opened by n crosses a line break
func spansNewline(n *token.Node) bool {
	for d := range n.All() {
		if d.Kind == token.KindNewline {
			return true
		}
	}
	return false
}
