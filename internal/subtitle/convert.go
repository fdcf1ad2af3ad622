package subtitle

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/mgpai22/subconv/internal/token"
)

const DefaultConcurrency = 4

// CueError reports a cue whose text could not be tokenized.
type CueError struct {
	Index int
	Text  string
	Err   error
}

func (e *CueError) Error() string {
	return fmt.Sprintf("cue %d: %v", e.Index, e.Err)
}

func (e *CueError) Unwrap() error {
	return e.Err
}

// TokenizeAll builds the token tree of every cue with up to concurrency
// workers. Cues that fail keep a nil Tree and are reported together as
// *CueError values joined into the returned error.
func TokenizeAll(
	ctx context.Context,
	cues []*Cue,
	tok *token.Tokenizer,
	concurrency int,
) error {
	if len(cues) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	workChan := make(chan int)
	errChan := make(chan *CueError, len(cues))

	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(cues); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workChan {
				cue := cues[idx]
				tree, err := tok.Tokenize(cue.Text)
				if err != nil {
					cue.Tree = nil
					errChan <- &CueError{Index: cue.Index, Text: cue.Text, Err: err}
					continue
				}
				cue.Tree = tree
			}
		}()
	}

	go func() {
		defer close(workChan)
		for i := range cues {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	wg.Wait()
	close(errChan)

	var cueErrs []*CueError
	for err := range errChan {
		cueErrs = append(cueErrs, err)
	}
	slices.SortFunc(cueErrs, func(a, b *CueError) int { return cmp.Compare(a.Index, b.Index) })

	errs := make([]error, 0, len(cueErrs)+1)
	for _, err := range cueErrs {
		errs = append(errs, err)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Tokenized returns the cues that have a token tree.
func Tokenized(cues []*Cue) []*Cue {
	out := make([]*Cue, 0, len(cues))
	for _, cue := range cues {
		if cue.Tree != nil {
			out = append(out, cue)
		}
	}
	return out
}

// Convert tokenizes doc with the registry's matchers and writes it in the
// target format. With skipInvalid, cues that fail to tokenize are left out
// and their errors are returned alongside a successful write.
func (r Registry) Convert(
	ctx context.Context,
	w io.Writer,
	doc *Document,
	target Format,
	meta Metadata,
	strict bool,
	skipInvalid bool,
) error {
	tokErr := TokenizeAll(ctx, doc.Cues, r.Tokenizer(strict), DefaultConcurrency)
	if tokErr != nil && (!skipInvalid || ctx.Err() != nil) {
		return tokErr
	}

	cues := Tokenized(doc.Cues)
	if err := target.Write(w, cues, meta); err != nil {
		return fmt.Errorf("failed to write %s: %w", target.Name(), err)
	}
	return tokErr
}
