// Package labelcard draws the trail label onto exported map snapshots.
package labelcard

import (
	"fmt"
	"math"
	"strings"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Card geometry in pixels.
const (
	Margin       = 16.0
	Padding      = 14.0
	Gap          = 6.0
	CornerRadius = 10.0
	MinWidth     = 180.0
	MaxWidth     = 360.0
	SwatchRadius = 7.0
	MaxLines     = 3
)

const ellipsis = "…"

// MeasureFunc returns the rendered width of s.
type MeasureFunc func(s string) float64

// Layout is the computed placement of a label card.
type Layout struct {
	X, Y          float64
	Width, Height float64
	TitleLines    []string
	Detail        string
	TitleLineH    float64
	DetailLineH   float64
}

// DetailText formats the length line of the card.
func DetailText(lengthKm float64) string {
	return fmt.Sprintf("%.2f km", lengthKm)
}

// ComputeLayout sizes the card from the measured text extents. The card is
// anchored Margin pixels from the top-left corner.
func ComputeLayout(card domain.LabelCard, title, detail MeasureFunc, titleLineH, detailLineH float64) Layout {
	budget := MaxWidth - 2*Padding
	lines := WrapText(card.Title, MaxLines, budget, title)
	detailText := DetailText(card.LengthKm)

	textW := detail(detailText) + 2*SwatchRadius + Gap
	for _, l := range lines {
		textW = math.Max(textW, title(l))
	}

	width := math.Max(MinWidth, math.Min(MaxWidth, textW+2*Padding))
	height := 2*Padding + float64(len(lines))*titleLineH + detailLineH
	if len(lines) > 0 {
		height += Gap
	}

	return Layout{
		X:           Margin,
		Y:           Margin,
		Width:       width,
		Height:      height,
		TitleLines:  lines,
		Detail:      detailText,
		TitleLineH:  titleLineH,
		DetailLineH: detailLineH,
	}
}

// WrapText greedily wraps text into at most maxLines lines no wider than
// maxWidth. Words wider than maxWidth are broken across lines; only text
// overflowing the last line is cut, ending with an ellipsis.
func WrapText(text string, maxLines int, maxWidth float64, measure MeasureFunc) []string {
	words := strings.Fields(text)
	if len(words) == 0 || maxLines <= 0 {
		return nil
	}

	// glued marks a line continuing a word broken on the previous one
	var (
		lines []string
		glued []bool
	)
	push := func(l string, g bool) {
		lines = append(lines, l)
		glued = append(glued, g)
	}

	cur, curGlued := "", false
	for _, w := range words {
		if measure(w) > maxWidth {
			if cur != "" {
				push(cur, curGlued)
			}
			chunks := breakWord(w, maxWidth, measure)
			for i, c := range chunks[:len(chunks)-1] {
				push(c, i > 0)
			}
			cur, curGlued = chunks[len(chunks)-1], len(chunks) > 1
			continue
		}
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if measure(candidate) <= maxWidth {
			cur = candidate
			continue
		}
		push(cur, curGlued)
		cur, curGlued = w, false
	}
	if cur != "" {
		push(cur, curGlued)
	}

	if len(lines) <= maxLines {
		return lines
	}
	var rest strings.Builder
	for i := maxLines - 1; i < len(lines); i++ {
		if i > maxLines-1 && !glued[i] {
			rest.WriteByte(' ')
		}
		rest.WriteString(lines[i])
	}
	out := append([]string(nil), lines[:maxLines-1]...)
	return append(out, Ellipsize(rest.String()+ellipsis, maxWidth, measure))
}

// breakWord splits w into runs no wider than maxWidth. Every run holds at
// least one rune.
func breakWord(w string, maxWidth float64, measure MeasureFunc) []string {
	var chunks []string
	runes := []rune(w)
	for len(runes) > 0 {
		n := 1
		for n < len(runes) && measure(string(runes[:n+1])) <= maxWidth {
			n++
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

// Ellipsize shortens s until it fits maxWidth, marking the cut with an
// ellipsis. Strings that already fit are returned unchanged.
func Ellipsize(s string, maxWidth float64, measure MeasureFunc) string {
	if measure(s) <= maxWidth {
		return s
	}
	runes := []rune(strings.TrimSuffix(s, ellipsis))
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimRight(string(runes), " ") + ellipsis
		if measure(candidate) <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}
