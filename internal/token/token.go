package token

import (
	"fmt"
	"iter"
)

// Kind identifies the role of a node in the token tree.
type Kind int

const (
	KindRoot Kind = iota
	KindText
	KindStyle
	KindNewline
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "ROOT"
	case KindText:
		return "TEXT"
	case KindStyle:
		return "STYLE"
	case KindNewline:
		return "NEWLINE"
	case KindEnd:
		return "END"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// StyleKind is the styling attribute a style node opens or closes.
type StyleKind int

const (
	Italics StyleKind = iota + 1
	Bold
	Underline
	Strikethrough
	FontName
	FontSize
	FontColor
)

var styleKindNames = map[StyleKind]string{
	Italics:       "italics",
	Bold:          "bold",
	Underline:     "underline",
	Strikethrough: "strikethrough",
	FontName:      "fontname",
	FontSize:      "fontsize",
	FontColor:     "fontcolor",
}

func (k StyleKind) String() string {
	if name, ok := styleKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StyleKind(%d)", int(k))
}

// Phase tells whether a style node starts or ends a span.
type Phase int

const (
	Open Phase = iota
	Close
)

func (p Phase) String() string {
	if p == Close {
		return "close"
	}
	return "open"
}

// Color is an RGB triple shared by every format that knows font colors.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Style is the payload of a KindStyle node.
//
// Color and Value carry data every format may interpret (Color for
// FontColor, Value for FontName and FontSize). Private belongs to Owner and
// must not be inspected by other formats.
type Style struct {
	Kind    StyleKind
	Phase   Phase
	Owner   Matcher
	Color   Color
	Value   string
	Private any
}

// Closing returns the close counterpart of an open style, keeping its data.
func (s Style) Closing() Style {
	s.Phase = Close
	return s
}

// OwnedBy reports whether s was created by m.
func (s Style) OwnedBy(m Matcher) bool {
	return s.Owner == m
}

// Node is one element of a cue's token tree.
type Node struct {
	Kind     Kind
	Text     string
	Style    Style
	Parent   *Node
	Children []*Node
}

func NewRoot() *Node {
	return &Node{Kind: KindRoot}
}

func NewText(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

func NewStyle(style Style) *Node {
	return &Node{Kind: KindStyle, Style: style}
}

func NewBoundary(kind Kind) *Node {
	return &Node{Kind: kind}
}

// Append adds child as the last child of n and returns child.
func (n *Node) Append(child *Node) *Node {
	child.Parent = n
	n.Children = append(n.Children, child)
	return child
}

// IsOpen reports whether n is an open style node.
func (n *Node) IsOpen() bool {
	return n != nil && n.Kind == KindStyle && n.Style.Phase == Open
}

// LastChild returns the most recently appended child, or nil.
func (n *Node) LastChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// All yields n and its descendants in depth-first pre-order, which is the
// reading order of the cue.
func (n *Node) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(yield) {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	switch n.Kind {
	case KindText:
		return fmt.Sprintf("[%s][%q]", n.Kind, n.Text)
	case KindStyle:
		s := n.Style
		owner := "-"
		if s.Owner != nil {
			owner = s.Owner.Name()
		}
		data := ""
		switch s.Kind {
		case FontColor:
			data = s.Color.String()
		case FontName, FontSize:
			data = s.Value
		}
		if s.Private != nil {
			return fmt.Sprintf("[%s][%s %s, %s, %q, %v]", n.Kind, s.Kind, s.Phase, owner, data, s.Private)
		}
		return fmt.Sprintf("[%s][%s %s, %s, %q]", n.Kind, s.Kind, s.Phase, owner, data)
	default:
		return "[" + n.Kind.String() + "]"
	}
}
