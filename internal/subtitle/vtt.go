package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/mgpai22/subconv/internal/token"
)

// WebVTT: WEBVTT header, cue blocks, <i>/<b>/<u> and <c.color> spans
var WebVTT = &vttFormat{}

type vttFormat struct{}

var (
	vttTimingRegex = regexp.MustCompile(
		`^(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s+-->\s+(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})(?:\s|$)`,
	)
	vttTagRegex = regexp.MustCompile(`<(/?)(i|b|u|c|v|lang|ruby|rt)((?:\.[\w-]+)*)(?:\s[^<>]*)?>`)
)

type vttTag struct {
	closing bool
	name    string
	classes []string
}

var vttStyleTags = map[string]token.StyleKind{
	"i": token.Italics,
	"b": token.Bold,
	"u": token.Underline,
}

func (f *vttFormat) Name() string { return "vtt" }

func (f *vttFormat) Aliases() []string { return []string{"vtt", "webvtt"} }

func (f *vttFormat) Extensions() []string { return []string{".vtt"} }

// Parse requires the WEBVTT signature. NOTE, STYLE and REGION blocks are
// skipped and cue identifiers are replaced by the cue position.
func (f *vttFormat) Parse(r io.Reader, meta Metadata) ([]*Cue, error) {
	var cues []*Cue
	scanner := bufio.NewScanner(r)

	var current *Cue
	var textLines []string
	lineNum := 0
	headerParsed := false
	skipping := false

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			cues = append(cues, current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if !headerParsed {
			if trimmed != "WEBVTT" && !strings.HasPrefix(trimmed, "WEBVTT ") &&
				!strings.HasPrefix(trimmed, "WEBVTT\t") {
				return nil, fmt.Errorf("missing WEBVTT header at line %d", lineNum)
			}
			headerParsed = true
			skipping = true
			continue
		}

		if trimmed == "" {
			flush()
			skipping = false
			continue
		}
		if skipping {
			continue
		}

		if current == nil {
			if trimmed == "NOTE" || strings.HasPrefix(trimmed, "NOTE ") ||
				trimmed == "STYLE" || trimmed == "REGION" {
				skipping = true
				continue
			}
		}

		if matches := vttTimingRegex.FindStringSubmatch(trimmed); matches != nil {
			if current != nil && len(textLines) > 0 {
				return nil, fmt.Errorf("timing line inside cue text at line %d", lineNum)
			}
			start, err := parseClock(matches[1], matches[2], matches[3], matches[4], time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseClock(matches[5], matches[6], matches[7], matches[8], time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Cue{Index: len(cues) + 1, Start: start, End: end}
			continue
		}

		if current == nil {
			// cue identifier
			continue
		}
		textLines = append(textLines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading VTT file: %w", err)
	}
	if !headerParsed {
		return nil, fmt.Errorf("missing WEBVTT header")
	}
	flush()

	return cues, nil
}

func (f *vttFormat) Write(w io.Writer, cues []*Cue, meta Metadata) error {
	bw := bufio.NewWriter(w)

	// VTT header
	bw.WriteString("WEBVTT\n\n")

	for _, cue := range cues {
		if cue.Tree == nil {
			return fmt.Errorf("cue %d is not tokenized", cue.Index)
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			cue.Index,
			formatVTTTime(cue.Start),
			formatVTTTime(cue.End),
			f.Render(cue.Tree.Root))
	}

	return bw.Flush()
}

func (f *vttFormat) FindNext(line string, at *token.Node) (token.Match, bool) {
	loc := vttTagRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return token.Match{}, false
	}
	tag := vttTag{
		closing: loc[3] > loc[2],
		name:    line[loc[4]:loc[5]],
	}
	if loc[7] > loc[6] {
		tag.classes = strings.Split(strings.TrimPrefix(line[loc[6]:loc[7]], "."), ".")
	}
	return token.Match{Start: loc[0], End: loc[1], Value: tag}, true
}

// Materialize handles italics, bold, underline and color classes. Voice,
// language and ruby spans carry no styling and are consumed without a
// token.
func (f *vttFormat) Materialize(m token.Match, at *token.Node) (*token.Node, error) {
	tag, ok := m.Value.(vttTag)
	if !ok {
		return nil, &token.MarkupError{Format: f.Name(), Span: m.Text, Reason: "not a WebVTT tag"}
	}

	kind, styled := vttStyleTags[tag.name]
	if tag.name == "c" {
		kind, styled = token.FontColor, true
	}
	if !styled {
		return at, nil
	}

	if tag.closing {
		target := token.Enclosing(at, func(s token.Style) bool {
			return s.OwnedBy(f) && s.Kind == kind
		})
		if target == nil {
			return at, nil
		}
		return token.CloseThrough(at, target), nil
	}

	style := token.Style{Kind: kind, Owner: f}
	if kind == token.FontColor {
		color, found := vttClassColor(tag.classes)
		if !found {
			return at, nil
		}
		style.Color = color
	}
	return at.Append(token.NewStyle(style)), nil
}

// first class naming one of the default text colors
func vttClassColor(classes []string) (token.Color, bool) {
	for _, class := range classes {
		if c, ok := namedColors[class]; ok {
			return c, true
		}
	}
	return token.Color{}, false
}

func (f *vttFormat) AutoClose(at *token.Node, boundary token.Kind) *token.Node {
	if boundary == token.KindEnd && at.IsOpen() && at.Style.OwnedBy(f) {
		return token.CloseNode(at)
	}
	return at
}

// Fonts and colors without a default class name are dropped.
func (f *vttFormat) Render(root *token.Node) string {
	var sb strings.Builder
	var closers []string

	for n := range root.All() {
		switch n.Kind {
		case token.KindText:
			sb.WriteString(n.Text)
		case token.KindNewline:
			sb.WriteString("\n")
		case token.KindStyle:
			if n.Style.Phase == token.Close {
				if len(closers) > 0 {
					sb.WriteString(closers[len(closers)-1])
					closers = closers[:len(closers)-1]
				}
				continue
			}
			open, closer := vttTags(n.Style)
			sb.WriteString(open)
			closers = append(closers, closer)
		}
	}
	return sb.String()
}

func vttTags(s token.Style) (string, string) {
	switch s.Kind {
	case token.Italics:
		return "<i>", "</i>"
	case token.Bold:
		return "<b>", "</b>"
	case token.Underline:
		return "<u>", "</u>"
	case token.FontColor:
		if name, ok := colorName(s.Color); ok {
			return "<c." + name + ">", "</c>"
		}
	}
	return "", ""
}
