package token

import (
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
)

// stubMatcher treats open and close as single-byte markers for one style.
type stubMatcher struct {
	name    string
	open    byte
	close   byte
	kind    StyleKind
	closeAt map[Kind]bool
	fail    bool
}

func (s *stubMatcher) Name() string { return s.name }

func (s *stubMatcher) FindNext(line string, at *Node) (Match, bool) {
	i := strings.IndexAny(line, string([]byte{s.open, s.close}))
	if i < 0 {
		return Match{}, false
	}
	return Match{Start: i, End: i + 1, Value: line[i]}, true
}

func (s *stubMatcher) Materialize(m Match, at *Node) (*Node, error) {
	if s.fail {
		return nil, &MarkupError{Format: s.name, Span: m.Text, Reason: "stub failure"}
	}
	if m.Value.(byte) == s.open {
		return at.Append(NewStyle(Style{Kind: s.kind, Owner: s})), nil
	}
	target := Enclosing(at, func(st Style) bool { return st.OwnedBy(s) && st.Kind == s.kind })
	if target == nil {
		return at, nil
	}
	return CloseThrough(at, target), nil
}

func (s *stubMatcher) Render(root *Node) string {
	var sb strings.Builder
	for n := range root.All() {
		switch n.Kind {
		case KindText:
			sb.WriteString(n.Text)
		case KindNewline:
			sb.WriteByte('\n')
		case KindStyle:
			if !n.Style.OwnedBy(s) {
				continue
			}
			if n.Style.Phase == Open {
				sb.WriteByte(s.open)
			} else {
				sb.WriteByte(s.close)
			}
		}
	}
	return sb.String()
}

func (s *stubMatcher) AutoClose(at *Node, boundary Kind) *Node {
	if !at.IsOpen() || !at.Style.OwnedBy(s) || !s.closeAt[boundary] {
		return at
	}
	return CloseNode(at)
}

// rootCloser always claims the insertion point, even the root.
type rootCloser struct{ stubMatcher }

func (r *rootCloser) AutoClose(at *Node, boundary Kind) *Node {
	return at.Parent
}

// grower never reaches a fixed point.
type grower struct{ stubMatcher }

func (g *grower) AutoClose(at *Node, boundary Kind) *Node {
	return at.Append(NewStyle(Style{Kind: Bold, Owner: g}))
}

func lineScoped(name string, open, close byte, kind StyleKind) *stubMatcher {
	return &stubMatcher{
		name: name, open: open, close: close, kind: kind,
		closeAt: map[Kind]bool{KindNewline: true, KindEnd: true},
	}
}

func shape(root *Node) []string {
	var out []string
	for n := range root.All() {
		out = append(out, n.String())
	}
	return out
}

func TestTokenizePlainText(t *testing.T) {
	tree, err := NewTokenizer().Tokenize("Hello\nWorld")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	want := []string{"[ROOT]", `[TEXT]["Hello"]`, "[NEWLINE]", `[TEXT]["World"]`, "[END]"}
	if diff := cmp.Diff(want, shape(tree.Root)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(tree.Root); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestTokenizePreservesEmptyLines(t *testing.T) {
	tree, err := NewTokenizer().Tokenize("a\n\nb")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"[ROOT]", `[TEXT]["a"]`, "[NEWLINE]", "[NEWLINE]", `[TEXT]["b"]`, "[END]"}
	if diff := cmp.Diff(want, shape(tree.Root)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverCascadesAcrossMatchers(t *testing.T) {
	a := lineScoped("a", '(', ')', Italics)
	b := lineScoped("b", '[', ']', Bold)

	// a is registered first, so on the first pass it sees b's node and
	// does nothing; b closes, and only the second pass closes a.
	tree, err := NewTokenizer(a, b).Tokenize("(x[y\nz")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	want := []string{
		"[ROOT]",
		`[STYLE][italics open, a, ""]`,
		`[TEXT]["x"]`,
		`[STYLE][bold open, b, ""]`,
		`[TEXT]["y"]`,
		`[STYLE][bold close, b, ""]`,
		`[STYLE][italics close, a, ""]`,
		"[NEWLINE]",
		`[TEXT]["z"]`,
		"[END]",
	}
	if diff := cmp.Diff(want, shape(tree.Root)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(tree.Root); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLeftmostMatchWins(t *testing.T) {
	a := lineScoped("a", '(', ')', Italics)
	b := lineScoped("b", '[', ']', Bold)

	for _, order := range [][]Matcher{{a, b}, {b, a}} {
		tree, err := NewTokenizer(order...).Tokenize("x[y(z")
		if err != nil {
			t.Fatalf("Tokenize: %v", err)
		}
		first := tree.Root.Children[1]
		if !first.IsOpen() || first.Style.Owner != Matcher(b) {
			t.Errorf("expected b to open first, got %s", first)
		}
	}
}

func TestTiesResolveByRegistrationOrder(t *testing.T) {
	a := lineScoped("a", '*', '#', Italics)
	b := lineScoped("b", '*', '%', Bold)

	for i := 0; i < 5; i++ {
		tree, err := NewTokenizer(a, b).Tokenize("*x")
		if err != nil {
			t.Fatalf("Tokenize: %v", err)
		}
		if got := tree.Root.Children[0].Style.Owner; got != Matcher(a) {
			t.Fatalf("run %d: tie resolved to %v, want a", i, got.Name())
		}
	}
}

func TestResolverRejectsClosingPastRoot(t *testing.T) {
	bad := &rootCloser{stubMatcher{name: "bad", open: '(', close: ')'}}
	_, err := NewTokenizer(bad).Tokenize("x\ny")
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree, got %v", err)
	}
}

func TestResolverPassCap(t *testing.T) {
	g := &grower{stubMatcher{name: "grower", open: '(', close: ')'}}
	tok := NewTokenizer(g)
	tok.MaxPasses = 3

	_, err := tok.Tokenize("x")
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree, got %v", err)
	}
	if !strings.Contains(err.Error(), "3 passes") {
		t.Errorf("error should mention the pass cap, got %v", err)
	}
}

func TestUnclosedStylePolicy(t *testing.T) {
	explicit := &stubMatcher{name: "tag", open: '<', close: '>', kind: Bold}

	t.Run("lenient force-closes and reports", func(t *testing.T) {
		tree, err := NewTokenizer(explicit).Tokenize("<Hello")
		if err != nil {
			t.Fatalf("Tokenize: %v", err)
		}
		if len(tree.Forced) != 1 || tree.Forced[0].Style.Kind != Bold {
			t.Fatalf("expected one forced bold, got %v", tree.Forced)
		}
		if err := Validate(tree.Root); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("strict rejects", func(t *testing.T) {
		tok := NewTokenizer(explicit)
		tok.Strict = true
		_, err := tok.Tokenize("<Hello")
		var unclosed *UnclosedError
		if !errors.As(err, &unclosed) {
			t.Fatalf("expected *UnclosedError, got %v", err)
		}
		if !errors.Is(err, ErrUnclosed) {
			t.Errorf("UnclosedError should wrap ErrUnclosed")
		}
		if len(unclosed.Open) != 1 {
			t.Errorf("expected one open style, got %d", len(unclosed.Open))
		}
	})
}

func TestMaterializeFailureAbortsCue(t *testing.T) {
	failing := &stubMatcher{name: "f", open: '(', close: ')', fail: true}
	tree, err := NewTokenizer(failing).Tokenize("a(b")
	if tree != nil {
		t.Errorf("no partial tree may be returned")
	}
	var me *MarkupError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MarkupError, got %v", err)
	}
	if me.Span != "(" {
		t.Errorf("span = %q, want %q", me.Span, "(")
	}
	if errors.Is(err, ErrMalformedTree) {
		t.Errorf("markup errors must stay distinct from structural errors")
	}
}

func TestCloseThroughReopensInnerStyles(t *testing.T) {
	b := &stubMatcher{name: "b", open: '{', close: '}', kind: Bold}
	i := &stubMatcher{name: "i", open: '(', close: ')', kind: Italics}

	tree, err := NewTokenizer(b, i).Tokenize("{x(y}z)")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if err := Validate(tree.Root); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// text after "}" stays italic but not bold
	var z *Node
	for n := range tree.Root.All() {
		if n.Kind == KindText && n.Text == "z" {
			z = n
		}
	}
	if z == nil || !z.Parent.IsOpen() || z.Parent.Style.Kind != Italics {
		t.Fatalf("z should be inside a reopened italics span")
	}
	if z.Parent.Parent.Kind != KindRoot {
		t.Errorf("reopened italics should sit at the root, parent is %s", z.Parent.Parent)
	}
}

func TestValidateDetectsUnbalancedTrees(t *testing.T) {
	m := lineScoped("m", '(', ')', Italics)

	root := NewRoot()
	root.Append(NewStyle(Style{Kind: Italics, Owner: m}))
	root.Append(NewBoundary(KindEnd))
	if err := Validate(root); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("open without close: expected ErrMalformedTree, got %v", err)
	}

	root = NewRoot()
	root.Append(NewStyle(Style{Kind: Italics, Phase: Close, Owner: m}))
	root.Append(NewBoundary(KindEnd))
	if err := Validate(root); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("close without open: expected ErrMalformedTree, got %v", err)
	}

	root = NewRoot()
	root.Append(NewText("x"))
	if err := Validate(root); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("missing end: expected ErrMalformedTree, got %v", err)
	}
}

func TestDumpIndentsByDepth(t *testing.T) {
	color.NoColor = true
	m := lineScoped("m", '(', ')', Italics)
	tree, err := NewTokenizer(m).Tokenize("(Hello")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	var sb strings.Builder
	if err := Dump(&sb, tree.Root, 0); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(sb.String(), "    [TEXT][\"Hello\"]") {
		t.Errorf("text should be indented two levels, got:\n%s", sb.String())
	}
}
