package geodoc

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHexColor parses "#RRGGBB" (the leading # is optional) into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("parse color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// KMLColor converts "#RRGGBB" into the aabbggrr form used by KML, with an
// opaque alpha. Unparseable input falls back to the default line colour.
func KMLColor(hex string) string {
	c, err := ParseHexColor(hex)
	if err != nil {
		c = color.NRGBA{R: 0xff, A: 0xff}
	}
	return fmt.Sprintf("%02x%02x%02x%02x", c.A, c.B, c.G, c.R)
}

// HexFromKML is the inverse of KMLColor, returning "#RRGGBB".
func HexFromKML(abgr string) (string, error) {
	if len(abgr) != 8 {
		return "", fmt.Errorf("parse kml color %q: want aabbggrr", abgr)
	}
	if _, err := strconv.ParseUint(abgr, 16, 32); err != nil {
		return "", fmt.Errorf("parse kml color %q: %w", abgr, err)
	}
	bb, gg, rr := abgr[2:4], abgr[4:6], abgr[6:8]
	return "#" + strings.ToUpper(rr+gg+bb), nil
}
