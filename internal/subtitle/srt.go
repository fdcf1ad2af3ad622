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

// SubRip: numbered cues with HTML-like <i>, <b>, <u>, <s> and <font> tags
var SubRip = &srtFormat{}

type srtFormat struct{}

var (
	srtTimestampRegex = regexp.MustCompile(
		`^(\d{1,2}):(\d{1,2}):(\d{1,2})[,.](\d{3})\s*-->\s*(\d{1,2}):(\d{1,2}):(\d{1,2})[,.](\d{3})`,
	)

	srtTagRegex = regexp.MustCompile(
		`(?i)[<{]([bisu])[>}]` +
			`|[<{]/([bisu])[>}]` +
			`|<font((?:\s+(?:face|color|size)\s*=\s*"[^"]*")+)\s*>` +
			`|(</font>)`,
	)

	srtFontAttrRegex = regexp.MustCompile(`(?i)(face|color|size)\s*=\s*"([^"]*)"`)
)

type srtTagType int

const (
	srtOpen srtTagType = iota
	srtClose
	srtFontOpen
	srtFontClose
)

type srtTag struct {
	typ    srtTagType
	letter string
	attrs  string
}

// One <font> tag with several attributes opens one style node per
// attribute, nested in source order. srtFontAttr ties them together so
// </font> closes the whole tag and rendering can merge them again.
type srtFontTag struct {
	attrs int
}

type srtFontAttr struct {
	tag *srtFontTag
	pos int
}

func (a srtFontAttr) String() string {
	return fmt.Sprintf("font attr %d/%d", a.pos+1, a.tag.attrs)
}

var srtStyleLetters = map[string]token.StyleKind{
	"i": token.Italics,
	"b": token.Bold,
	"u": token.Underline,
	"s": token.Strikethrough,
}

func (f *srtFormat) Name() string { return "srt" }

func (f *srtFormat) Aliases() []string { return []string{"srt", "subrip"} }

func (f *srtFormat) Extensions() []string { return []string{".srt"} }

type srtState int

const (
	srtStateIndex srtState = iota
	srtStateTiming
	srtStateText
)

func (f *srtFormat) Parse(r io.Reader, meta Metadata) ([]*Cue, error) {
	var cues []*Cue
	scanner := bufio.NewScanner(r)

	state := srtStateIndex
	var current *Cue
	var textLines []string
	lineNum := 0

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			cues = append(cues, current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			if state == srtStateText {
				flush()
				state = srtStateIndex
			}
			continue
		}

		switch state {
		case srtStateIndex:
			index, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("invalid index at line %d: %q", lineNum, line)
			}
			current = &Cue{Index: index}
			state = srtStateTiming
		case srtStateTiming:
			matches := srtTimestampRegex.FindStringSubmatch(strings.TrimSpace(line))
			if len(matches) != 9 {
				return nil, fmt.Errorf("invalid timing at line %d: %q", lineNum, line)
			}
			start, err := parseClock(matches[1], matches[2], matches[3], matches[4], time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseClock(matches[5], matches[6], matches[7], matches[8], time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current.Start = start
			current.End = end
			state = srtStateText
		case srtStateText:
			textLines = append(textLines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT file: %w", err)
	}
	if state == srtStateTiming {
		return nil, fmt.Errorf("cue %d has no timing line", current.Index)
	}
	flush()

	return cues, nil
}

func (f *srtFormat) Write(w io.Writer, cues []*Cue, meta Metadata) error {
	bw := bufio.NewWriter(w)
	for _, cue := range cues {
		if cue.Tree == nil {
			return fmt.Errorf("cue %d is not tokenized", cue.Index)
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			cue.Index,
			formatSRTTime(cue.Start),
			formatSRTTime(cue.End),
			f.Render(cue.Tree.Root))
	}
	return bw.Flush()
}

func (f *srtFormat) FindNext(line string, at *token.Node) (token.Match, bool) {
	loc := srtTagRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return token.Match{}, false
	}

	tag := srtTag{}
	switch {
	case loc[2] >= 0:
		tag.typ = srtOpen
		tag.letter = strings.ToLower(line[loc[2]:loc[3]])
	case loc[4] >= 0:
		tag.typ = srtClose
		tag.letter = strings.ToLower(line[loc[4]:loc[5]])
	case loc[6] >= 0:
		tag.typ = srtFontOpen
		tag.attrs = line[loc[6]:loc[7]]
	default:
		tag.typ = srtFontClose
	}
	return token.Match{Start: loc[0], End: loc[1], Value: tag}, true
}

func (f *srtFormat) Materialize(m token.Match, at *token.Node) (*token.Node, error) {
	tag, ok := m.Value.(srtTag)
	if !ok {
		return nil, f.markupError(m, "not a SubRip tag")
	}

	switch tag.typ {
	case srtOpen:
		kind, ok := srtStyleLetters[tag.letter]
		if !ok {
			return nil, f.markupError(m, "unsupported style")
		}
		return at.Append(token.NewStyle(token.Style{Kind: kind, Owner: f})), nil

	case srtClose:
		kind, ok := srtStyleLetters[tag.letter]
		if !ok {
			return nil, f.markupError(m, "unsupported style")
		}
		target := token.Enclosing(at, func(s token.Style) bool {
			return s.OwnedBy(f) && s.Kind == kind
		})
		if target == nil {
			// stray closing tag
			return at, nil
		}
		return token.CloseThrough(at, target), nil

	case srtFontOpen:
		attrs := srtFontAttrRegex.FindAllStringSubmatch(tag.attrs, -1)
		group := &srtFontTag{attrs: len(attrs)}
		for i, attr := range attrs {
			style := token.Style{Owner: f, Private: srtFontAttr{tag: group, pos: i}}
			switch strings.ToLower(attr[1]) {
			case "face":
				style.Kind = token.FontName
				style.Value = attr[2]
			case "size":
				style.Kind = token.FontSize
				style.Value = attr[2]
			case "color":
				color, err := parseSRTColor(attr[2])
				if err != nil {
					return nil, f.markupError(m, err.Error())
				}
				style.Kind = token.FontColor
				style.Color = color
			default:
				return nil, f.markupError(m, "unsupported font attribute "+attr[1])
			}
			at = at.Append(token.NewStyle(style))
		}
		return at, nil

	case srtFontClose:
		inner := token.Enclosing(at, func(s token.Style) bool {
			_, ok := s.Private.(srtFontAttr)
			return s.OwnedBy(f) && ok
		})
		if inner == nil {
			return at, nil
		}
		// walk out to the node opened by the first attribute of the tag
		head := inner
		for attr := head.Style.Private.(srtFontAttr); attr.pos > 0; attr = head.Style.Private.(srtFontAttr) {
			parent := head.Parent
			if !parent.IsOpen() || !parent.Style.OwnedBy(f) {
				break
			}
			if pa, ok := parent.Style.Private.(srtFontAttr); !ok || pa.tag != attr.tag {
				break
			}
			head = parent
		}
		group := head.Style.Private.(srtFontAttr).tag
		return token.CloseThroughFunc(at, head, func(s token.Style) bool {
			attr, ok := s.Private.(srtFontAttr)
			return !s.OwnedBy(f) || !ok || attr.tag != group
		}), nil
	}

	return nil, f.markupError(m, "could not create token")
}

func parseSRTColor(s string) (token.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:], false)
	}
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	return token.Color{}, fmt.Errorf("color %q: want #RRGGBB or a color name", s)
}

func (f *srtFormat) markupError(m token.Match, reason string) error {
	return &token.MarkupError{Format: f.Name(), Span: m.Text, Reason: reason}
}

// SubRip tags end only where the source closes them.
func (f *srtFormat) AutoClose(at *token.Node, boundary token.Kind) *token.Node {
	return at
}

func (f *srtFormat) Render(root *token.Node) string {
	var sb strings.Builder

	// one entry per open style node, true when its close emits a tag
	var open []bool
	absorbed := make(map[*token.Node]bool)

	for n := range root.All() {
		switch n.Kind {
		case token.KindText:
			sb.WriteString(n.Text)
		case token.KindNewline:
			sb.WriteString("\n")
		case token.KindStyle:
			if n.Style.Phase == token.Close {
				if len(open) == 0 {
					continue
				}
				emit := open[len(open)-1]
				open = open[:len(open)-1]
				if emit {
					sb.WriteString(srtCloseTag(n.Style.Kind))
				}
				continue
			}

			if absorbed[n] {
				open = append(open, false)
				continue
			}
			if isFontKind(n.Style.Kind) {
				chain := f.fontChain(n)
				attrs := make([]string, len(chain))
				for i, c := range chain {
					attrs[i] = srtFontAttribute(c.Style)
					if i > 0 {
						absorbed[c] = true
					}
				}
				sb.WriteString("<font " + strings.Join(attrs, " ") + ">")
				open = append(open, true)
				continue
			}
			if tag := srtOpenTag(n.Style.Kind); tag != "" {
				sb.WriteString(tag)
				open = append(open, true)
				continue
			}
			open = append(open, false)
		}
	}
	return sb.String()
}

// nodes opened by the same <font> tag as n, starting with n
func (f *srtFormat) fontChain(n *token.Node) []*token.Node {
	chain := []*token.Node{n}
	attr, ok := n.Style.Private.(srtFontAttr)
	if !n.Style.OwnedBy(f) || !ok {
		return chain
	}
	for cur := n; len(cur.Children) > 0; {
		next := cur.Children[0]
		nextAttr, ok := next.Style.Private.(srtFontAttr)
		if !next.IsOpen() || !next.Style.OwnedBy(f) || !ok ||
			nextAttr.tag != attr.tag || nextAttr.pos != attr.pos+1 {
			break
		}
		chain = append(chain, next)
		cur, attr = next, nextAttr
	}
	return chain
}

func isFontKind(k token.StyleKind) bool {
	return k == token.FontName || k == token.FontSize || k == token.FontColor
}

func srtFontAttribute(s token.Style) string {
	switch s.Kind {
	case token.FontName:
		return fmt.Sprintf("face=%q", s.Value)
	case token.FontSize:
		return fmt.Sprintf("size=%q", s.Value)
	default:
		return fmt.Sprintf("color=\"#%s\"", formatHexColor(s.Color, false))
	}
}

func srtOpenTag(k token.StyleKind) string {
	switch k {
	case token.Italics:
		return "<i>"
	case token.Bold:
		return "<b>"
	case token.Underline:
		return "<u>"
	case token.Strikethrough:
		return "<s>"
	}
	return ""
}

func srtCloseTag(k token.StyleKind) string {
	switch k {
	case token.Italics:
		return "</i>"
	case token.Bold:
		return "</b>"
	case token.Underline:
		return "</u>"
	case token.Strikethrough:
		return "</s>"
	case token.FontName, token.FontSize, token.FontColor:
		return "</font>"
	}
	return ""
}
