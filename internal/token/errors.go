package token

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMarkup marks markup a matcher claimed but could not turn into tokens.
	ErrMarkup = errors.New("markup parse error")

	// ErrMalformedTree signals a broken insertion point. It indicates a
	// defective matcher, never bad input.
	ErrMalformedTree = errors.New("malformed token tree")

	// ErrUnclosed is returned in strict mode when styles are still open at
	// the end of a cue.
	ErrUnclosed = errors.New("unclosed style")
)

type MarkupError struct {
	Format string
	Span   string
	Reason string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("%s: cannot materialize %q: %s", e.Format, e.Span, e.Reason)
}

func (e *MarkupError) Unwrap() error {
	return ErrMarkup
}

// UnclosedError lists the styles left open at the end of a cue, innermost
// first.
type UnclosedError struct {
	Open []Style
}

func (e *UnclosedError) Error() string {
	names := make([]string, len(e.Open))
	for i, s := range e.Open {
		owner := "?"
		if s.Owner != nil {
			owner = s.Owner.Name()
		}
		names[i] = owner + ":" + s.Kind.String()
	}
	return fmt.Sprintf("%d style(s) open at end of cue: %s", len(e.Open), strings.Join(names, ", "))
}

func (e *UnclosedError) Unwrap() error {
	return ErrUnclosed
}
