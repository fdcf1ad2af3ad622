package subtitle

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mgpai22/subconv/internal/token"
)

func tokenize(t *testing.T, text string) *token.Tree {
	t.Helper()
	tree, err := DefaultRegistry.Tokenizer(false).Tokenize(text)
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", text, err)
	}
	if err := token.Validate(tree.Root); err != nil {
		t.Fatalf("Tokenize(%q) produced an invalid tree: %v", text, err)
	}
	return tree
}

func TestConvertMarkup(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target Format
		want   string
	}{
		{
			name:   "one-line microdvd italics to srt",
			input:  "{y:i}Hello\nWorld",
			target: SubRip,
			want:   "<i>Hello</i>\nWorld",
		},
		{
			name:   "all-lines microdvd italics to srt",
			input:  "{Y:i}Hello\nWorld",
			target: SubRip,
			want:   "<i>Hello\nWorld</i>",
		},
		{
			name:   "srt italics to microdvd",
			input:  "<i>Hello</i>\nWorld",
			target: MicroDVD,
			want:   "{y:i}Hello|World",
		},
		{
			name:   "srt multi-line italics to microdvd",
			input:  "<i>Hello\nWorld</i>",
			target: MicroDVD,
			want:   "{Y:i}Hello|World",
		},
		{
			name:   "one-line microdvd italics around all-lines bold",
			input:  "{y:i}{Y:b}A\nB",
			target: SubRip,
			want:   "<i><b>A</b></i><b>\nB</b>",
		},
		{
			name:   "one-line microdvd italics around srt bold",
			input:  "{y:i}<b>A\nB</b>",
			target: SubRip,
			want:   "<i><b>A</b></i><b>\nB</b>",
		},
		{
			name:   "mpl2 slash around srt bold",
			input:  "/<b>A\nB</b>",
			target: SubRip,
			want:   "<i><b>A</b></i><b>\nB</b>",
		},
		{
			name:   "microdvd reopens a span at the next line",
			input:  "A <i>B\nC</i>",
			target: MicroDVD,
			want:   "A B|{y:i}C",
		},
		{
			name:   "microdvd span closed before the next line's text",
			input:  "A <i>B\n</i>C",
			target: MicroDVD,
			want:   "A B|C",
		},
		{
			name:   "microdvd style list",
			input:  "{y:b,i}Hello",
			target: SubRip,
			want:   "<b><i>Hello</i></b>",
		},
		{
			name:   "microdvd style list round trip",
			input:  "{y:b,i}Hello",
			target: MicroDVD,
			want:   "{y:b,i}Hello",
		},
		{
			name:   "microdvd color",
			input:  "{c:$0000FF}Red",
			target: SubRip,
			want:   `<font color="#FF0000">Red</font>`,
		},
		{
			name:   "microdvd font and size",
			input:  "{f:Arial}{s:20}Big",
			target: SubRip,
			want:   `<font face="Arial"><font size="20">Big</font></font>`,
		},
		{
			name:   "mpl2 slash to srt",
			input:  "/Hello\nWorld",
			target: SubRip,
			want:   "<i>Hello</i>\nWorld",
		},
		{
			name:   "srt italics to mpl2",
			input:  "<i>Hello\nWorld</i>",
			target: MPL2,
			want:   "/Hello|/World",
		},
		{
			name:   "mpl2 slash inside a line is text",
			input:  "and/or",
			target: SubRip,
			want:   "and/or",
		},
		{
			name:   "srt font tag keeps attribute order",
			input:  `<font color="#FF0000" face="Arial">Hi</font> there`,
			target: SubRip,
			want:   `<font color="#FF0000" face="Arial">Hi</font> there`,
		},
		{
			name:   "srt named color",
			input:  `<font color="yellow">Hi</font>`,
			target: WebVTT,
			want:   "<c.yellow>Hi</c>",
		},
		{
			name:   "srt misnested tags",
			input:  "<b><i>x</b>y</i>",
			target: SubRip,
			want:   "<b><i>x</i></b><i>y</i>",
		},
		{
			name:   "srt stray close tag",
			input:  "Hello</i>",
			target: SubRip,
			want:   "Hello",
		},
		{
			name:   "srt brace tags",
			input:  "{i}Hello{/i}",
			target: SubRip,
			want:   "<i>Hello</i>",
		},
		{
			name:   "srt uppercase tags",
			input:  "<I>Hello</I>",
			target: WebVTT,
			want:   "<i>Hello</i>",
		},
		{
			name:   "srt italics to ass",
			input:  "<i>Hello</i> world",
			target: ASS,
			want:   `{\i1}Hello{\i0} world`,
		},
		{
			name:   "ass italics to srt",
			input:  `{\i1}Hello{\i0} world`,
			target: SubRip,
			want:   "<i>Hello</i> world",
		},
		{
			name:   "ass override closes at end of line",
			input:  `{\b1}Bold` + "\n" + "still",
			target: SubRip,
			want:   "<b>Bold\nstill</b>",
		},
		{
			name:   "ass color",
			input:  `{\c&H0000FF&}Red`,
			target: WebVTT,
			want:   "<c.red>Red</c>",
		},
		{
			name:   "ass color replaces outer color",
			input:  `{\c&H0000FF&}Red{\c&HFF0000&}Blue`,
			target: ASS,
			want:   `{\c&H0000FF&}Red{\c&HFF0000&}Blue{\c}`,
		},
		{
			name:   "ass bold closed with nested italics",
			input:  `{\b1}{\i1}x{\b0}y`,
			target: ASS,
			want:   `{\b1\i1}x{\b0\i1}y{\i0}`,
		},
		{
			name:   "ass regular weight is not bold",
			input:  `{\b400}Hi`,
			target: SubRip,
			want:   "Hi",
		},
		{
			name:   "ass heavy weight is bold",
			input:  `{\b700}Hi`,
			target: SubRip,
			want:   "<b>Hi</b>",
		},
		{
			name:   "ass reset",
			input:  `{\i1\b1}Hi{\r}there`,
			target: SubRip,
			want:   "<i><b>Hi</b></i>there",
		},
		{
			name:   "ass unknown tags are dropped",
			input:  `{\pos(100,200)\blur2}Hi`,
			target: SubRip,
			want:   "Hi",
		},
		{
			name:   "ass newline",
			input:  "{\\i1}a\nb",
			target: ASS,
			want:   `{\i1}a\Nb{\i0}`,
		},
		{
			name:   "vtt color to microdvd",
			input:  "<c.yellow>Hi</c>",
			target: MicroDVD,
			want:   "{c:$00FFFF}Hi",
		},
		{
			name:   "vtt voice span is dropped",
			input:  "<v Bob>Hi</v>",
			target: SubRip,
			want:   "Hi",
		},
		{
			name:   "vtt unknown class",
			input:  "<c.loud>Hi</c>",
			target: SubRip,
			want:   "Hi",
		},
		{
			name:   "mpl2 keeps only italics",
			input:  "<b>Hello</b>\n{y:i}World",
			target: MPL2,
			want:   "Hello|/World",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := tokenize(t, tt.input)
			got := tt.target.Render(tree.Root)
			if got != tt.want {
				t.Errorf("Render(%s) = %q, want %q", tt.target.Name(), got, tt.want)
			}
		})
	}
}

func TestUnclosedStylePolicy(t *testing.T) {
	tree := tokenize(t, "<b>Hello")
	if len(tree.Forced) != 1 || tree.Forced[0].Style.Kind != token.Bold {
		t.Fatalf("expected the bold span to be force-closed, got %v", tree.Forced)
	}
	if got := SubRip.Render(tree.Root); got != "<b>Hello</b>" {
		t.Errorf("got %q, want %q", got, "<b>Hello</b>")
	}

	_, err := DefaultRegistry.Tokenizer(true).Tokenize("<b>Hello")
	if !errors.Is(err, token.ErrUnclosed) {
		t.Errorf("strict mode: expected ErrUnclosed, got %v", err)
	}
	var unclosed *token.UnclosedError
	if !errors.As(err, &unclosed) || len(unclosed.Open) != 1 {
		t.Errorf("strict mode: expected one unclosed style, got %v", err)
	}
}

func TestInvalidMarkup(t *testing.T) {
	tests := []string{
		"{y:q}Hello",
		"{c:$GG0000}Hello",
		"{c:red}Hello",
		"{s:big}Hello",
		`<font color="#12">Hi</font>`,
		`{\c&HZZ&}Hi`,
	}

	tok := DefaultRegistry.Tokenizer(false)
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := tok.Tokenize(input)
			if !errors.Is(err, token.ErrMarkup) {
				t.Errorf("expected ErrMarkup, got %v", err)
			}
		})
	}
}

func TestRegistryOrderBreaksTies(t *testing.T) {
	// <i> is valid SubRip and WebVTT; SubRip is registered first
	tree := tokenize(t, "<i>Hi</i>")
	var owners []string
	for n := range tree.Root.All() {
		if n.Kind == token.KindStyle {
			owners = append(owners, n.Style.Owner.Name())
		}
	}
	if diff := cmp.Diff([]string{"srt", "srt"}, owners); diff != "" {
		t.Errorf("owners mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeShape(t *testing.T) {
	tree := tokenize(t, "{y:i}Hello\nWorld")

	var got []string
	for n := range tree.Root.All() {
		got = append(got, n.String())
	}
	want := []string{
		"[ROOT]",
		`[STYLE][italics open, microdvd, "", one-line]`,
		`[TEXT]["Hello"]`,
		`[STYLE][italics close, microdvd, "", one-line]`,
		"[NEWLINE]",
		`[TEXT]["World"]`,
		"[END]",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	meta := DefaultMetadata()
	meta.FPS = 25

	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{
			name:   "srt",
			format: SubRip,
			content: "1\n00:00:01,000 --> 00:00:04,000\n<i>Hello</i>\nWorld\n\n" +
				"2\n00:00:05,500 --> 00:00:08,200\n<font color=\"#FF0000\">Red</font>\n\n",
		},
		{
			name:    "vtt",
			format:  WebVTT,
			content: "WEBVTT\n\n1\n00:00:01.000 --> 00:00:04.000\n<b>Hi</b> <c.lime>there</c>\n\n",
		},
		{
			name:    "microdvd",
			format:  MicroDVD,
			content: "{25}{50}{y:i}Hello|World\n{75}{100}{Y:b}Two|Lines\n",
		},
		{
			name:    "mpl2",
			format:  MPL2,
			content: "[10][25]/Hello|World\n[30][40]Plain\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cues, err := tt.format.Parse(strings.NewReader(tt.content), meta)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if err := TokenizeAll(context.Background(), cues, DefaultRegistry.Tokenizer(false), 2); err != nil {
				t.Fatalf("TokenizeAll failed: %v", err)
			}

			var buf bytes.Buffer
			if err := tt.format.Write(&buf, cues, meta); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if diff := cmp.Diff(tt.content, buf.String()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteASS(t *testing.T) {
	cues := []*Cue{{Index: 1, Start: time.Second, End: 4 * time.Second, Text: "<i>Hi</i>\nthere"}}
	if err := TokenizeAll(context.Background(), cues, DefaultRegistry.Tokenizer(false), 1); err != nil {
		t.Fatalf("TokenizeAll failed: %v", err)
	}

	meta := DefaultMetadata()
	meta.Title = "Test"
	var buf bytes.Buffer
	if err := ASS.Write(&buf, cues, meta); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"[Script Info]\nTitle: Test\n",
		"Style: Default,Arial,20,",
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n",
		`Dialogue: 0,0:00:01.00,0:00:04.00,Default,,0,0,0,,{\i1}Hi{\i0}\Nthere` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	cues, err := ASS.Parse(strings.NewReader(out), meta)
	if err != nil {
		t.Fatalf("Parse of written output failed: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "{\\i1}Hi{\\i0}\nthere" {
		t.Errorf("unexpected cues after re-parse: %+v", cues)
	}
}

func TestWriteRequiresTokenizedCues(t *testing.T) {
	cues := []*Cue{{Index: 1, Text: "Hi"}}
	for _, f := range DefaultRegistry {
		if err := f.Write(&bytes.Buffer{}, cues, DefaultMetadata()); err == nil {
			t.Errorf("%s: expected error for untokenized cue", f.Name())
		}
	}
}

func TestTokenizeAllReportsFailedCues(t *testing.T) {
	cues := []*Cue{
		{Index: 1, Text: "<i>ok</i>"},
		{Index: 2, Text: "{y:q}bad"},
		{Index: 3, Text: "fine"},
	}

	err := TokenizeAll(context.Background(), cues, DefaultRegistry.Tokenizer(false), 2)
	var cueErr *CueError
	if !errors.As(err, &cueErr) {
		t.Fatalf("expected *CueError, got %v", err)
	}
	if cueErr.Index != 2 {
		t.Errorf("expected cue 2 to fail, got cue %d", cueErr.Index)
	}
	if !errors.Is(err, token.ErrMarkup) {
		t.Errorf("expected error chain to contain ErrMarkup, got %v", err)
	}

	if cues[0].Tree == nil || cues[2].Tree == nil {
		t.Error("valid cues should be tokenized")
	}
	if cues[1].Tree != nil {
		t.Error("failed cue should have no tree")
	}
	if got := len(Tokenized(cues)); got != 2 {
		t.Errorf("expected 2 tokenized cues, got %d", got)
	}
}

func TestTokenizeAllOrdersFailedCues(t *testing.T) {
	var cues []*Cue
	for i := 1; i <= 20; i++ {
		text := "fine"
		if i%3 == 0 {
			text = "{y:q}bad"
		}
		cues = append(cues, &Cue{Index: i, Text: text})
	}

	err := TokenizeAll(context.Background(), cues, DefaultRegistry.Tokenizer(false), 4)
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected joined errors, got %v", err)
	}

	var got []int
	for _, e := range joined.Unwrap() {
		var cueErr *CueError
		if !errors.As(e, &cueErr) {
			t.Fatalf("unexpected error %v", e)
		}
		got = append(got, cueErr.Index)
	}
	if diff := cmp.Diff([]int{3, 6, 9, 12, 15, 18}, got); diff != "" {
		t.Errorf("cue order mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertSkipsInvalidCues(t *testing.T) {
	doc := &Document{
		Format: SubRip,
		Cues: []*Cue{
			{Index: 1, Start: time.Second, End: 2 * time.Second, Text: "{y:q}bad"},
			{Index: 2, Start: 3 * time.Second, End: 4 * time.Second, Text: "<b>good</b>"},
		},
	}

	var buf bytes.Buffer
	err := DefaultRegistry.Convert(context.Background(), &buf, doc, WebVTT, DefaultMetadata(), false, false)
	if err == nil {
		t.Fatal("expected error without skipInvalid")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on failure, got %q", buf.String())
	}

	err = DefaultRegistry.Convert(context.Background(), &buf, doc, WebVTT, DefaultMetadata(), false, true)
	if err == nil {
		t.Error("skipped cues should still be reported")
	}
	want := "WEBVTT\n\n2\n00:00:03.000 --> 00:00:04.000\n<b>good</b>\n\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunsKeepStyling(t *testing.T) {
	cues := []*Cue{{Index: 1, Text: "<i>Hello</i> world\nagain"}}
	if err := TokenizeAll(context.Background(), cues, DefaultRegistry.Tokenizer(false), 1); err != nil {
		t.Fatalf("TokenizeAll failed: %v", err)
	}

	runs := Runs(cues)
	var texts []string
	for _, r := range runs {
		texts = append(texts, r.Text())
	}
	if diff := cmp.Diff([]string{"Hello", " world", "again"}, texts); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}

	runs[0].Set("Hola")
	runs[1].Set("mundo\nentero")
	runs[2].Set("   ")

	got := SubRip.Render(cues[0].Tree.Root)
	want := "<i>Hola</i> mundo entero\nagain"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
