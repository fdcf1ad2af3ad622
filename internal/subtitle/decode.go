package subtitle

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts raw subtitle bytes to UTF-8 text. A byte order mark
// overrides the named charset and is removed; an empty name means UTF-8.
func Decode(data []byte, charset string) (string, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}

	decoder := unicode.BOMOverride(enc.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s input: %w", charsetName(charset), err)
	}
	return string(out), nil
}

func lookupEncoding(charset string) (encoding.Encoding, error) {
	name := strings.TrimSpace(charset)
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

func charsetName(charset string) string {
	if charset == "" {
		return "utf-8"
	}
	return charset
}
