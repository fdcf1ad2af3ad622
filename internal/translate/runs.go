package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/mgpai22/subconv/internal/subtitle"
)

// TranslateRuns translates the text runs of tokenized cues in place.
// Whitespace-only runs are left alone; a run the model did not return keeps
// its original text.
func TranslateRuns(
	ctx context.Context,
	translator Translator,
	runs []subtitle.Run,
	concurrency int,
) (int, error) {
	items := make([]TranslationItem, 0, len(runs))
	for i, run := range runs {
		if strings.TrimSpace(run.Text()) == "" {
			continue
		}
		items = append(items, TranslationItem{Index: i, Text: strings.TrimSpace(run.Text())})
	}
	if len(items) == 0 {
		return 0, nil
	}

	var (
		results []TranslationResult
		err     error
	)
	if ct, ok := translator.(ConcurrentTranslator); ok && concurrency > 1 {
		results, err = ct.TranslateWithConcurrency(ctx, items, concurrency)
	} else {
		results, err = translator.Translate(ctx, items)
	}
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(runs) {
			return applied, fmt.Errorf("translation returned unknown index %d", r.Index)
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		runs[r.Index].Set(r.Text)
		applied++
	}
	return applied, nil
}
