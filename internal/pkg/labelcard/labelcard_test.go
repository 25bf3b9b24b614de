package labelcard_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/pkg/labelcard"
)

// tenPx measures every rune as 10 pixels wide.
func tenPx(s string) float64 { return float64(utf8.RuneCountInString(s)) * 10 }

func TestWrapText_FitsOnOneLine(t *testing.T) {
	lines := labelcard.WrapText("Short trail", 3, 200, tenPx)
	if len(lines) != 1 || lines[0] != "Short trail" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestWrapText_WrapsAtWords(t *testing.T) {
	lines := labelcard.WrapText("alpha beta gamma delta", 3, 105, tenPx)
	want := []string{"alpha beta", "gamma", "delta"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, lines)
	}
}

func TestWrapText_TruncatesOverflow(t *testing.T) {
	lines := labelcard.WrapText("one two three four five six seven", 2, 90, tenPx)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	last := lines[1]
	if !strings.HasSuffix(last, "…") {
		t.Errorf("last line should end with an ellipsis, got %q", last)
	}
	if tenPx(last) > 90 {
		t.Errorf("last line too wide: %q", last)
	}
}

func TestWrapText_LongWordBreaksAcrossLines(t *testing.T) {
	lines := labelcard.WrapText("Supercalifragilistic", 3, 80, tenPx)
	want := []string{"Supercal", "ifragili", "stic"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, lines)
	}
}

func TestWrapText_LongWordOverflowCutOnLastLine(t *testing.T) {
	lines := labelcard.WrapText("Supercalifragilistic", 2, 80, tenPx)
	if len(lines) != 2 || lines[0] != "Supercal" {
		t.Fatalf("expected the word broken over 2 lines, got %q", lines)
	}
	if !strings.HasSuffix(lines[1], "…") || tenPx(lines[1]) > 80 {
		t.Errorf("expected the last line cut within budget, got %q", lines[1])
	}
	if strings.Contains(lines[1], " ") {
		t.Errorf("broken word must not gain a space, got %q", lines[1])
	}
}

func TestWrapText_LongWordMidTitle(t *testing.T) {
	lines := labelcard.WrapText("Via Supercalifragilistic End", 3, 120, tenPx)
	want := []string{"Via", "Supercalifra", "gilistic End"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, lines)
	}
	for _, l := range lines {
		if strings.HasSuffix(l, "…") {
			t.Errorf("no line should be cut when the title fits, got %q", l)
		}
	}
}

func TestWrapText_LongWordMidTitleOverflow(t *testing.T) {
	lines := labelcard.WrapText("Via Ferrata Supercalifragilistic Loop", 3, 80, tenPx)
	if len(lines) != 3 || lines[0] != "Via" || lines[1] != "Ferrata" {
		t.Fatalf("expected the leading words intact, got %q", lines)
	}
	if lines[2] != "Superca…" {
		t.Errorf("expected only the last line cut, got %q", lines[2])
	}
}

func TestWrapText_Empty(t *testing.T) {
	if lines := labelcard.WrapText("   ", 3, 100, tenPx); lines != nil {
		t.Fatalf("expected nil, got %q", lines)
	}
}

func TestComputeLayout_ClampsWidth(t *testing.T) {
	short := labelcard.ComputeLayout(domain.LabelCard{Title: "A", LengthKm: 1}, tenPx, tenPx, 20, 16)
	if short.Width != labelcard.MinWidth {
		t.Errorf("expected min width %v, got %v", labelcard.MinWidth, short.Width)
	}

	wide := func(string) float64 { return 1000 }
	long := labelcard.ComputeLayout(domain.LabelCard{Title: strings.Repeat("word ", 40), LengthKm: 1}, tenPx, wide, 20, 16)
	if long.Width != labelcard.MaxWidth {
		t.Errorf("expected max width %v, got %v", labelcard.MaxWidth, long.Width)
	}
	if len(long.TitleLines) != labelcard.MaxLines {
		t.Errorf("expected %d lines, got %d", labelcard.MaxLines, len(long.TitleLines))
	}
}

func TestComputeLayout_HeightFollowsLines(t *testing.T) {
	one := labelcard.ComputeLayout(domain.LabelCard{Title: "Trail"}, tenPx, tenPx, 20, 16)
	three := labelcard.ComputeLayout(domain.LabelCard{Title: strings.Repeat("word ", 40)}, tenPx, tenPx, 20, 16)
	if three.Height-one.Height != 40 {
		t.Errorf("expected two extra title lines (40px), got %v", three.Height-one.Height)
	}
	if one.X != labelcard.Margin || one.Y != labelcard.Margin {
		t.Errorf("card should be anchored at the margin, got (%v,%v)", one.X, one.Y)
	}
}

func TestDetailText(t *testing.T) {
	if got := labelcard.DetailText(12.345); got != "12.35 km" && got != "12.34 km" {
		t.Errorf("unexpected detail %q", got)
	}
	if got := labelcard.DetailText(3); got != "3.00 km" {
		t.Errorf("expected 3.00 km, got %q", got)
	}
}

func TestRenderer_ComposePNG(t *testing.T) {
	r, err := labelcard.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for i := range frame.Pix {
		frame.Pix[i] = 0x40
	}

	out, err := r.ComposePNG(frame, domain.LabelCard{Title: "Test Trail", LengthKm: 4.2, Color: "#FF0000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds() != frame.Bounds() {
		t.Errorf("expected bounds %v, got %v", frame.Bounds(), img.Bounds())
	}
	inside := color.RGBAModel.Convert(img.At(int(labelcard.Margin)+30, int(labelcard.Margin)+2)).(color.RGBA)
	if inside.R < 0xc0 {
		t.Errorf("expected the card background near the top-left, got %+v", inside)
	}
}

func TestRenderer_NilFrame(t *testing.T) {
	r, err := labelcard.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ComposePNG(nil, domain.LabelCard{}); err == nil {
		t.Fatal("expected error for nil frame")
	}
}
