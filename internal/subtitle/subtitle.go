package subtitle

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/subconv/internal/token"
)

// represents single subtitle cue
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string

	// nil until the cue is tokenized
	Tree *token.Tree
}

// represents a parsed subtitle file
type Document struct {
	Cues   []*Cue
	Format Format
}

// settings shared by parsers and writers
type Metadata struct {
	FPS      float64 // frame rate for frame based formats
	Encoding string  // input character set, empty means UTF-8
	Title    string  // script title for formats with a header
}

const DefaultFPS = 23.976

func DefaultMetadata() Metadata {
	return Metadata{
		FPS:   DefaultFPS,
		Title: "subconv",
	}
}

func (m Metadata) fps() float64 {
	if m.FPS > 0 {
		return m.FPS
	}
	return DefaultFPS
}

// Format is a subtitle file format: a record parser and writer plus the
// matcher for its inline styling.
type Format interface {
	token.Matcher

	// lowercase names the format answers to, the first is canonical
	Aliases() []string
	Extensions() []string

	Parse(r io.Reader, meta Metadata) ([]*Cue, error)
	Write(w io.Writer, cues []*Cue, meta Metadata) error
}

// Registry is the ordered set of known formats. The order decides which
// matcher wins when two formats match at the same offset, and which parser
// is tried first during detection.
type Registry []Format

// DefaultRegistry holds every built-in format.
var DefaultRegistry = Registry{MicroDVD, MPL2, SubRip, ASS, WebVTT}

func (r Registry) Matchers() []token.Matcher {
	matchers := make([]token.Matcher, len(r))
	for i, f := range r {
		matchers[i] = f
	}
	return matchers
}

// returns a tokenizer that probes every registered format
func (r Registry) Tokenizer(strict bool) *token.Tokenizer {
	tok := token.NewTokenizer(r.Matchers()...)
	tok.Strict = strict
	return tok
}

func (r Registry) Lookup(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range r {
		for _, alias := range f.Aliases() {
			if alias == name {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("unsupported format: %s", name)
}

// format registered for the extension of path
func (r Registry) ForPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range r {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, true
			}
		}
	}
	return nil, false
}

func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name()
	}
	return names
}

func Lookup(name string) (Format, error) {
	return DefaultRegistry.Lookup(name)
}

// file extension for a format
func ExtensionFor(f Format) string {
	if exts := f.Extensions(); len(exts) > 0 {
		return exts[0]
	}
	return ".txt"
}
