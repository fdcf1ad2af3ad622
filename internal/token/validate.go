package token

import "fmt"

type balanceKey struct {
	owner Matcher
	kind  StyleKind
}

// Validate checks the structural invariants of a finished tree: every open
// style is balanced by a later close sibling of the same owner and kind,
// boundaries and text are leaves, and the tree ends with exactly one End
// node as the last child of the root.
func Validate(root *Node) error {
	if root == nil || root.Kind != KindRoot {
		return fmt.Errorf("tree has no root: %w", ErrMalformedTree)
	}
	if root.Parent != nil {
		return fmt.Errorf("root has a parent: %w", ErrMalformedTree)
	}

	ends := 0
	for n := range root.All() {
		if n.Kind == KindEnd {
			ends++
		}
	}
	if ends != 1 {
		return fmt.Errorf("tree has %d end nodes: %w", ends, ErrMalformedTree)
	}
	if last := root.LastChild(); last == nil || last.Kind != KindEnd {
		return fmt.Errorf("end node is not the last child of the root: %w", ErrMalformedTree)
	}

	return validateChildren(root)
}

func validateChildren(n *Node) error {
	open := make(map[balanceKey]int)
	for _, c := range n.Children {
		if c.Parent != n {
			return fmt.Errorf("%s has a stale parent link: %w", c, ErrMalformedTree)
		}

		switch c.Kind {
		case KindRoot:
			return fmt.Errorf("nested root: %w", ErrMalformedTree)
		case KindText:
			if c.Text == "" {
				return fmt.Errorf("empty text node: %w", ErrMalformedTree)
			}
			fallthrough
		case KindNewline, KindEnd:
			if len(c.Children) > 0 {
				return fmt.Errorf("%s has children: %w", c, ErrMalformedTree)
			}
		case KindStyle:
			key := balanceKey{owner: c.Style.Owner, kind: c.Style.Kind}
			if c.Style.Phase == Open {
				open[key]++
				if err := validateChildren(c); err != nil {
					return err
				}
				continue
			}
			if len(c.Children) > 0 {
				return fmt.Errorf("%s has children: %w", c, ErrMalformedTree)
			}
			if open[key] == 0 {
				return fmt.Errorf("%s without a preceding open: %w", c, ErrMalformedTree)
			}
			open[key]--
		}
	}

	for key, count := range open {
		if count != 0 {
			return fmt.Errorf("%d unbalanced %s open(s): %w", count, key.kind, ErrMalformedTree)
		}
	}
	return nil
}
