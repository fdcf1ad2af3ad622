package subtitle

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mgpai22/subconv/internal/token"
)

// WebVTT default color classes; SubRip accepts the same names
var namedColors = map[string]token.Color{
	"white":   {R: 0xFF, G: 0xFF, B: 0xFF},
	"lime":    {R: 0x00, G: 0xFF, B: 0x00},
	"cyan":    {R: 0x00, G: 0xFF, B: 0xFF},
	"red":     {R: 0xFF, G: 0x00, B: 0x00},
	"yellow":  {R: 0xFF, G: 0xFF, B: 0x00},
	"magenta": {R: 0xFF, G: 0x00, B: 0xFF},
	"blue":    {R: 0x00, G: 0x00, B: 0xFF},
	"black":   {R: 0x00, G: 0x00, B: 0x00},
}

func colorName(c token.Color) (string, bool) {
	for name, named := range namedColors {
		if named == c {
			return name, true
		}
	}
	return "", false
}

// parses six hex digits; reversed reads them as BBGGRR
func parseHexColor(s string, reversed bool) (token.Color, error) {
	if len(s) != 6 {
		return token.Color{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return token.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	if reversed {
		return token.Color{R: b[2], G: b[1], B: b[0]}, nil
	}
	return token.Color{R: b[0], G: b[1], B: b[2]}, nil
}

func formatHexColor(c token.Color, reversed bool) string {
	b := []byte{c.R, c.G, c.B}
	if reversed {
		b[0], b[2] = b[2], b[0]
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
