package token

// Match is one occurrence of a format's markup inside the unconsumed part of
// a line. Start and End are byte offsets into that remainder. Value holds
// whatever the owning matcher needs to materialize the match.
type Match struct {
	Start int
	End   int
	Text  string
	Value any
}

// Matcher recognizes, builds, renders and auto-closes the inline styling of
// one subtitle format. Implementations are stateless and safe for
// concurrent use; their identity is what Style.Owner records.
type Matcher interface {
	Name() string

	// FindNext returns the leftmost markup of this format in line, given
	// the current insertion point. Malformed markup is reported as no match.
	FindNext(line string, at *Node) (Match, bool)

	// Materialize appends the style nodes for m under at and returns the
	// new insertion point.
	Materialize(m Match, at *Node) (*Node, error)

	// Render writes the tree rooted at root in this format's markup.
	Render(root *Node) string

	// AutoClose closes the innermost open style at the insertion point if
	// this format requires it at the given boundary (KindNewline or
	// KindEnd) and returns the resulting insertion point.
	AutoClose(at *Node, boundary Kind) *Node
}

// Render renders root with m.
func Render(root *Node, m Matcher) string {
	return m.Render(root)
}

// CloseNode appends the closing counterpart of the open style n to n's
// parent and returns that parent. It returns nil if n has no parent.
func CloseNode(n *Node) *Node {
	parent := n.Parent
	if parent == nil {
		return nil
	}
	parent.Append(NewStyle(n.Style.Closing()))
	return parent
}

// Enclosing walks from at towards the root and returns the first open style
// node accepted by match, or nil.
func Enclosing(at *Node, match func(Style) bool) *Node {
	for n := at; n != nil && n.Kind == KindStyle; n = n.Parent {
		if match(n.Style) {
			return n
		}
	}
	return nil
}

// CloseThrough closes every open style from at up to and including target,
// then reopens the styles that were nested inside target so text after the
// close keeps them. target must be at or an ancestor of at.
func CloseThrough(at, target *Node) *Node {
	return CloseThroughFunc(at, target, nil)
}

// CloseThroughFunc is CloseThrough but reopens only the nested styles
// accepted by reopen. A nil reopen accepts every style.
func CloseThroughFunc(at, target *Node, reopen func(Style) bool) *Node {
	var inner []*Node
	for n := at; n != target; n = n.Parent {
		if !n.IsOpen() {
			return nil
		}
		if reopen == nil || reopen(n.Style) {
			inner = append(inner, n)
		}
	}

	cur := at
	for cur != target {
		cur = CloseNode(cur)
	}
	cur = CloseNode(target)
	if cur == nil {
		return nil
	}

	for i := len(inner) - 1; i >= 0; i-- {
		cur = cur.Append(NewStyle(inner[i].Style))
	}
	return cur
}
