package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgpai22/subconv/internal/subtitle"
)

const stdio = "-"

// readDocument parses a file or, for "-", stdin. Without a named format
// the file extension is tried first and the content detected otherwise.
func readDocument(path, from string, stdin io.Reader) (*subtitle.Document, error) {
	return loadDocument(path, from, stdin, false)
}

func loadDocument(path, from string, stdin io.Reader, detectOnly bool) (*subtitle.Document, error) {
	meta := metadata()

	var format subtitle.Format
	if from != "" {
		f, err := subtitle.Lookup(from)
		if err != nil {
			return nil, err
		}
		format = f
	}

	if path != stdio {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("subtitle file not found: %s", path)
		}
	}
	if path != stdio && format == nil && !detectOnly {
		doc, err := subtitle.Open(path, meta)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subtitle file: %w", err)
		}
		return doc, nil
	}

	var data []byte
	var err error
	if path == stdio {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	text, err := subtitle.Decode(data, meta.Encoding)
	if err != nil {
		return nil, err
	}

	if format == nil {
		return subtitle.Detect(text, meta)
	}
	cues, err := format.Parse(strings.NewReader(text), meta)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format.Name(), err)
	}
	return &subtitle.Document{Cues: cues, Format: format}, nil
}

// <input base>.<suffix><target ext>, or stdout when reading stdin
func defaultOutput(input, suffix string, target subtitle.Format) string {
	if input == stdio {
		return stdio
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if suffix != "" {
		base += "." + suffix
	}
	return base + subtitle.ExtensionFor(target)
}

// writes a fully rendered document to path or, for "-", to stdout
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == stdio {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// resolveTarget picks the --to format, falling back to the output extension
// and then to the source format.
func resolveTarget(name, output string, source subtitle.Format) (subtitle.Format, error) {
	if name != "" {
		return subtitle.Lookup(name)
	}
	if output != "" && output != stdio {
		if f, ok := subtitle.DefaultRegistry.ForPath(output); ok {
			return f, nil
		}
	}
	return source, nil
}

// logs cues dropped by --skip-invalid and styles closed at the end of a cue
func reportCues(doc *subtitle.Document, err error) {
	for _, cueErr := range cueErrors(err) {
		logger.Warnw("Skipping cue",
			"cue", cueErr.Index,
			"error", cueErr.Err,
		)
	}
	for _, cue := range doc.Cues {
		if cue.Tree == nil || len(cue.Tree.Forced) == 0 {
			continue
		}
		styles := make([]string, len(cue.Tree.Forced))
		for i, n := range cue.Tree.Forced {
			styles[i] = n.Style.Kind.String()
		}
		logger.Warnw("Closed unterminated styles",
			"cue", cue.Index,
			"styles", styles,
		)
	}
}

func cueErrors(err error) []*subtitle.CueError {
	if err == nil {
		return nil
	}
	var cueErr *subtitle.CueError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*subtitle.CueError
		for _, e := range joined.Unwrap() {
			out = append(out, cueErrors(e)...)
		}
		return out
	}
	if errors.As(err, &cueErr) {
		return []*subtitle.CueError{cueErr}
	}
	return nil
}
