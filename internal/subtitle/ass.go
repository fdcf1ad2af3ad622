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

// ASS: Advanced SubStation Alpha dialogue with {\override} blocks
var ASS = &assFormat{
	FontName: "Arial",
	FontSize: 20,
}

type assFormat struct {
	FontName string
	FontSize int
}

var (
	assBlockRegex = regexp.MustCompile(`\{\\[^{}]*\}`)
	// one override tag; parenthesized arguments may contain backslashes
	assTagRegex   = regexp.MustCompile(`\\([^\\(]*(?:\([^)]*\))?)`)
	assFlagRegex  = regexp.MustCompile(`^([bisu])(\d*)$`)
	assColorRegex = regexp.MustCompile(`^1?c(&H.*)?$`)
	assSizeRegex  = regexp.MustCompile(`^fs(\d+(?:\.\d+)?)?$`)
	assTimeRegex  = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})\.(\d{2})$`)
)

var assFlagKinds = map[string]token.StyleKind{
	"i": token.Italics,
	"b": token.Bold,
	"u": token.Underline,
	"s": token.Strikethrough,
}

func (f *assFormat) Name() string { return "ass" }

func (f *assFormat) Aliases() []string { return []string{"ass", "ssa"} }

func (f *assFormat) Extensions() []string { return []string{".ass", ".ssa"} }

// Parse reads the Dialogue lines of the [Events] section. Everything else
// in the script is skipped.
func (f *assFormat) Parse(r io.Reader, meta Metadata) ([]*Cue, error) {
	var cues []*Cue
	scanner := bufio.NewScanner(r)
	inEventsSection := false
	sawEvents := false
	var columns []string
	textIdx, startIdx, endIdx := -1, -1, -1
	lineNum := 0

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		trimmedLine := strings.TrimSpace(line)

		if strings.HasPrefix(trimmedLine, "[") &&
			strings.HasSuffix(trimmedLine, "]") {
			sectionName := strings.ToLower(
				strings.TrimSuffix(strings.TrimPrefix(trimmedLine, "["), "]"),
			)
			inEventsSection = sectionName == "events"
			sawEvents = sawEvents || inEventsSection
			continue
		}

		if !inEventsSection {
			continue
		}

		if strings.HasPrefix(trimmedLine, "Format:") {
			columns = strings.Split(strings.TrimPrefix(trimmedLine, "Format:"), ",")
			for i, col := range columns {
				columns[i] = strings.TrimSpace(col)
				switch strings.ToLower(columns[i]) {
				case "text":
					textIdx = i
				case "start":
					startIdx = i
				case "end":
					endIdx = i
				}
			}
			if textIdx == -1 || startIdx == -1 || endIdx == -1 {
				return nil, fmt.Errorf(
					"ASS Format line at %d needs Start, End and Text columns",
					lineNum,
				)
			}
			continue
		}

		if !strings.HasPrefix(trimmedLine, "Dialogue:") {
			continue
		}
		if columns == nil {
			return nil, fmt.Errorf("dialogue at line %d precedes the Format line", lineNum)
		}

		content := strings.TrimSpace(strings.TrimPrefix(trimmedLine, "Dialogue:"))
		parts := splitASSFields(content, len(columns))
		if len(parts) < len(columns) {
			return nil, fmt.Errorf(
				"failed to parse Dialogue at line %d: expected %d fields, got %d",
				lineNum, len(columns), len(parts),
			)
		}

		start, err := parseASSTimestamp(parts[startIdx])
		if err != nil {
			return nil, fmt.Errorf("invalid start time at line %d: %w", lineNum, err)
		}
		end, err := parseASSTimestamp(parts[endIdx])
		if err != nil {
			return nil, fmt.Errorf("invalid end time at line %d: %w", lineNum, err)
		}

		text := strings.ReplaceAll(parts[textIdx], "\\N", "\n")
		text = strings.ReplaceAll(text, "\\n", "\n")
		text = strings.ReplaceAll(text, "\\h", "\u00a0")

		cues = append(cues, &Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  text,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}
	if !sawEvents {
		return nil, fmt.Errorf("ASS file has no [Events] section")
	}
	if columns == nil {
		return nil, fmt.Errorf("ASS file missing Format line in [Events] section")
	}

	return cues, nil
}

// the last field keeps its commas
func splitASSFields(content string, numFields int) []string {
	if numFields <= 0 {
		return nil
	}

	parts := make([]string, 0, numFields)
	remaining := content

	for i := 0; i < numFields-1; i++ {
		idx := strings.Index(remaining, ",")
		if idx == -1 {
			parts = append(parts, remaining)
			remaining = ""
			return parts
		}
		parts = append(parts, remaining[:idx])
		remaining = remaining[idx+1:]
	}

	return append(parts, remaining)
}

func parseASSTimestamp(ts string) (time.Duration, error) {
	m := assTimeRegex.FindStringSubmatch(strings.TrimSpace(ts))
	if m == nil {
		return 0, fmt.Errorf("timestamp %q: want H:MM:SS.CC", ts)
	}
	return parseClock(m[1], m[2], m[3], m[4], 10*time.Millisecond)
}

func (f *assFormat) Write(w io.Writer, cues []*Cue, meta Metadata) error {
	bw := bufio.NewWriter(w)

	// script info section
	bw.WriteString("[Script Info]\n")
	fmt.Fprintf(bw, "Title: %s\n", meta.Title)
	bw.WriteString("ScriptType: v4.00+\n")
	bw.WriteString("Collisions: Normal\n")
	bw.WriteString("PlayDepth: 0\n\n")

	// v4+ styles section
	bw.WriteString("[V4+ Styles]\n")
	bw.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		f.FontName, f.FontSize)

	// events section
	bw.WriteString("[Events]\n")
	bw.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, cue := range cues {
		if cue.Tree == nil {
			return fmt.Errorf("cue %d is not tokenized", cue.Index)
		}
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(cue.Start),
			formatASSTime(cue.End),
			f.Render(cue.Tree.Root))
	}

	return bw.Flush()
}

func (f *assFormat) FindNext(line string, at *token.Node) (token.Match, bool) {
	loc := assBlockRegex.FindStringIndex(line)
	if loc == nil {
		return token.Match{}, false
	}
	return token.Match{Start: loc[0], End: loc[1]}, true
}

// Materialize applies the tags of one override block in order. Font and
// color tags replace the value currently in effect; unknown tags are
// dropped.
func (f *assFormat) Materialize(m token.Match, at *token.Node) (*token.Node, error) {
	block := strings.TrimSuffix(strings.TrimPrefix(m.Text, "{"), "}")

	for _, tag := range assTagRegex.FindAllStringSubmatch(block, -1) {
		raw := strings.TrimSpace(tag[1])
		var err error

		switch {
		case raw == "r" || (strings.HasPrefix(raw, "r") && !strings.Contains(raw, "(")):
			at = f.reset(at)

		case assFlagRegex.MatchString(raw):
			parts := assFlagRegex.FindStringSubmatch(raw)
			at = f.toggle(at, assFlagKinds[parts[1]], parts[2])

		case strings.HasPrefix(raw, "fn"):
			name := strings.TrimSpace(strings.TrimPrefix(raw, "fn"))
			at = f.replace(at, token.Style{Kind: token.FontName, Value: name}, name == "")

		case assSizeRegex.MatchString(raw):
			size := assSizeRegex.FindStringSubmatch(raw)[1]
			at = f.replace(at, token.Style{Kind: token.FontSize, Value: size}, size == "")

		case assColorRegex.MatchString(raw):
			value := assColorRegex.FindStringSubmatch(raw)[1]
			if value == "" {
				at = f.replace(at, token.Style{Kind: token.FontColor}, true)
				break
			}
			var color token.Color
			if color, err = parseASSColor(value); err != nil {
				return nil, &token.MarkupError{Format: f.Name(), Span: m.Text, Reason: err.Error()}
			}
			at = f.replace(at, token.Style{Kind: token.FontColor, Color: color}, false)
		}

		if at == nil {
			return nil, nil
		}
	}
	return at, nil
}

// \i1 opens, \i0 or a bare \i closes; bold also takes a weight
func (f *assFormat) toggle(at *token.Node, kind token.StyleKind, arg string) *token.Node {
	current := f.enclosing(at, kind)
	on := assFlagOn(kind, arg)
	switch {
	case on && current == nil:
		return at.Append(token.NewStyle(token.Style{Kind: kind, Owner: f}))
	case !on && current != nil:
		return token.CloseThrough(at, current)
	}
	return at
}

// weights below 700 are regular text
func assFlagOn(kind token.StyleKind, arg string) bool {
	if arg == "1" {
		return true
	}
	if kind != token.Bold {
		return false
	}
	weight, err := strconv.Atoi(arg)
	return err == nil && weight >= 700
}

func (f *assFormat) replace(at *token.Node, style token.Style, closeOnly bool) *token.Node {
	if current := f.enclosing(at, style.Kind); current != nil {
		at = token.CloseThrough(at, current)
		if at == nil {
			return nil
		}
	}
	if closeOnly {
		return at
	}
	style.Owner = f
	return at.Append(token.NewStyle(style))
}

// \r drops every override in effect
func (f *assFormat) reset(at *token.Node) *token.Node {
	for at != nil {
		current := token.Enclosing(at, func(s token.Style) bool { return s.OwnedBy(f) })
		if current == nil {
			break
		}
		at = token.CloseThrough(at, current)
	}
	return at
}

func (f *assFormat) enclosing(at *token.Node, kind token.StyleKind) *token.Node {
	return token.Enclosing(at, func(s token.Style) bool {
		return s.OwnedBy(f) && s.Kind == kind
	})
}

// &HBBGGRR& with an optional alpha byte in front
func parseASSColor(s string) (token.Color, error) {
	hex := strings.TrimSuffix(strings.TrimPrefix(strings.ToUpper(s), "&H"), "&")
	if len(hex) > 6 {
		hex = hex[len(hex)-6:]
	}
	if len(hex) < 6 {
		hex = strings.Repeat("0", 6-len(hex)) + hex
	}
	return parseHexColor(hex, true)
}

// overrides stay in effect until the end of the dialogue line
func (f *assFormat) AutoClose(at *token.Node, boundary token.Kind) *token.Node {
	if boundary == token.KindEnd && at.IsOpen() && at.Style.OwnedBy(f) {
		return token.CloseNode(at)
	}
	return at
}

// Render emits override blocks, restoring the outer value of a font or
// color tag when an inner one closes. Tags at the same position share a
// block.
func (f *assFormat) Render(root *token.Node) string {
	var sb strings.Builder
	var block []string
	values := make(map[token.StyleKind][]string)
	// position in block of a restoring tag, dropped if the kind reopens
	restored := make(map[token.StyleKind]int)

	flush := func() {
		if len(block) > 0 {
			sb.WriteString("{" + strings.Join(block, "") + "}")
			block = block[:0]
		}
		clear(restored)
	}

	for n := range root.All() {
		switch n.Kind {
		case token.KindText:
			flush()
			sb.WriteString(strings.ReplaceAll(n.Text, "\u00a0", "\\h"))
		case token.KindNewline:
			flush()
			sb.WriteString("\\N")
		case token.KindStyle:
			kind := n.Style.Kind
			if n.Style.Phase == token.Open {
				value, ok := assValue(n.Style)
				if !ok {
					continue
				}
				values[kind] = append(values[kind], value)
				if i, ok := restored[kind]; ok {
					block[i] = ""
					delete(restored, kind)
				}
				block = append(block, assTag(kind, value))
				continue
			}

			stack := values[kind]
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			values[kind] = stack
			outer := ""
			if len(stack) > 0 {
				outer = stack[len(stack)-1]
			} else if isFlagKind(kind) {
				outer = "0"
			}
			restored[kind] = len(block)
			block = append(block, assTag(kind, outer))
		}
	}
	flush()
	return sb.String()
}

func isFlagKind(k token.StyleKind) bool {
	return k == token.Italics || k == token.Bold || k == token.Underline || k == token.Strikethrough
}

func assValue(s token.Style) (string, bool) {
	switch s.Kind {
	case token.Italics, token.Bold, token.Underline, token.Strikethrough:
		return "1", true
	case token.FontName, token.FontSize:
		return s.Value, true
	case token.FontColor:
		return "&H" + formatHexColor(s.Color, true) + "&", true
	}
	return "", false
}

func assTag(k token.StyleKind, value string) string {
	switch k {
	case token.Italics:
		return "\\i" + value
	case token.Bold:
		return "\\b" + value
	case token.Underline:
		return "\\u" + value
	case token.Strikethrough:
		return "\\s" + value
	case token.FontName:
		return "\\fn" + value
	case token.FontSize:
		return "\\fs" + value
	case token.FontColor:
		return "\\c" + value
	}
	return ""
}
