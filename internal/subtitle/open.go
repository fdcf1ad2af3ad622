package subtitle

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Open reads a subtitle file. The format registered for the file extension
// is tried first; when that fails or the extension is unknown the content
// decides.
func Open(path string, meta Metadata) (*Document, error) {
	return DefaultRegistry.Open(path, meta)
}

// Detect parses text with the first format that yields at least one cue.
func Detect(text string, meta Metadata) (*Document, error) {
	return DefaultRegistry.Detect(text, meta)
}

func (r Registry) Open(path string, meta Metadata) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	text, err := Decode(data, meta.Encoding)
	if err != nil {
		return nil, err
	}

	if f, ok := r.ForPath(path); ok {
		cues, err := f.Parse(strings.NewReader(text), meta)
		if err == nil && len(cues) > 0 {
			return &Document{Cues: cues, Format: f}, nil
		}
	}

	doc, err := r.Detect(text, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (r Registry) Detect(text string, meta Metadata) (*Document, error) {
	var errs []error
	for _, f := range r {
		cues, err := f.Parse(strings.NewReader(text), meta)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		if len(cues) == 0 {
			errs = append(errs, fmt.Errorf("%s: no cues", f.Name()))
			continue
		}
		return &Document{Cues: cues, Format: f}, nil
	}
	return nil, fmt.Errorf("unsupported subtitle format: %w", errors.Join(errs...))
}
