package token

import (
	"fmt"
	"strings"
)

// DefaultMaxPasses bounds the closing-token fixed point.
const DefaultMaxPasses = 64

// Tree is a tokenized cue.
type Tree struct {
	Root *Node

	// Forced lists the open style nodes that no matcher closed by the end
	// of the cue and that were closed at the root instead.
	Forced []*Node
}

// Tokenizer turns cue text into a token tree using a fixed set of matchers.
// The order of Matchers decides ties between matches at the same offset.
type Tokenizer struct {
	Matchers []Matcher

	// Strict rejects cues that still have open styles at the end instead
	// of force-closing them.
	Strict bool

	MaxPasses int
}

func NewTokenizer(matchers ...Matcher) *Tokenizer {
	return &Tokenizer{Matchers: matchers}
}

func (t *Tokenizer) maxPasses() int {
	if t.MaxPasses > 0 {
		return t.MaxPasses
	}
	return DefaultMaxPasses
}

// Tokenize builds the token tree of one cue's text. Lines are separated by
// "\n".
func (t *Tokenizer) Tokenize(text string) (*Tree, error) {
	root := NewRoot()
	at := root

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for line != "" {
			m, match, ok := t.next(line, at)
			if !ok {
				at.Append(NewText(line))
				break
			}
			if match.Start < 0 || match.End <= match.Start || match.End > len(line) {
				return nil, fmt.Errorf(
					"%s: invalid match span [%d,%d) in %q: %w",
					m.Name(), match.Start, match.End, line, ErrMalformedTree,
				)
			}

			if match.Start > 0 {
				at.Append(NewText(line[:match.Start]))
			}
			match.Text = line[match.Start:match.End]
			line = line[match.End:]

			next, err := m.Materialize(match, at)
			if err != nil {
				return nil, err
			}
			if next == nil {
				return nil, fmt.Errorf(
					"%s: %q left no insertion point: %w",
					m.Name(), match.Text, ErrMalformedTree,
				)
			}
			at = next
		}

		if i < len(lines)-1 {
			var err error
			if at, err = t.resolve(at, KindNewline); err != nil {
				return nil, err
			}
			at.Append(NewBoundary(KindNewline))
		}
	}

	at, err := t.resolve(at, KindEnd)
	if err != nil {
		return nil, err
	}

	tree := &Tree{Root: root}
	if at != root {
		if t.Strict {
			unclosed := &UnclosedError{}
			for n := at; n != root; n = n.Parent {
				unclosed.Open = append(unclosed.Open, n.Style)
			}
			return nil, unclosed
		}
		for at != root {
			if !at.IsOpen() {
				return nil, fmt.Errorf("insertion point is a %s node: %w", at.Kind, ErrMalformedTree)
			}
			tree.Forced = append(tree.Forced, at)
			at = CloseNode(at)
		}
	}
	root.Append(NewBoundary(KindEnd))

	return tree, nil
}

// next asks every matcher for its leftmost match and keeps the earliest.
// Matchers registered first win ties.
func (t *Tokenizer) next(line string, at *Node) (Matcher, Match, bool) {
	var (
		best     Matcher
		bestSpan Match
	)
	for _, m := range t.Matchers {
		match, ok := m.FindNext(line, at)
		if !ok {
			continue
		}
		if best == nil || match.Start < bestSpan.Start {
			best, bestSpan = m, match
		}
	}
	return best, bestSpan, best != nil
}

// resolve offers the insertion point to every matcher's AutoClose until a
// full pass leaves it unchanged.
func (t *Tokenizer) resolve(at *Node, boundary Kind) (*Node, error) {
	limit := t.maxPasses()
	for pass := 0; pass < limit; pass++ {
		before := at
		for _, m := range t.Matchers {
			at = m.AutoClose(at, boundary)
			if at == nil {
				return nil, fmt.Errorf(
					"%s closed past the root at %s: %w",
					m.Name(), boundary, ErrMalformedTree,
				)
			}
		}
		if at == before {
			return at, nil
		}
	}
	return nil, fmt.Errorf(
		"no fixed point after %d passes at %s: %w",
		limit, boundary, ErrMalformedTree,
	)
}
