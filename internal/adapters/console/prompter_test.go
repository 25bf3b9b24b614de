package console_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/trailexport/internal/adapters/console"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
)

var _ ports.Prompter = (*console.Prompter)(nil)

var question = domain.PromptRequest{
	Title:       "Drive to the trailhead?",
	ConfirmText: "Drive to the trailhead",
	CancelText:  "Walking track only",
}

func TestPrompter_Answers(t *testing.T) {
	var out bytes.Buffer
	p := console.NewPrompter(strings.NewReader("yes\nn\n\nY\n"), &out)

	want := []bool{true, false, false, true}
	for i, w := range want {
		got, err := p.Prompt(context.Background(), question)
		if err != nil {
			t.Fatalf("prompt %d: %v", i, err)
		}
		if got != w {
			t.Errorf("prompt %d: got %v, want %v", i, got, w)
		}
	}
	if !strings.Contains(out.String(), "Drive to the trailhead?") {
		t.Errorf("title not printed: %q", out.String())
	}
}

func TestPrompter_InfoOnly(t *testing.T) {
	var out bytes.Buffer
	p := console.NewPrompter(strings.NewReader("whatever\n"), &out)
	ok, err := p.Prompt(context.Background(), domain.PromptRequest{Title: "Route opened", ConfirmText: "OK"})
	if err != nil || !ok {
		t.Errorf("expected confirmation, got %v %v", ok, err)
	}
}

func TestPrompter_EOF(t *testing.T) {
	p := console.NewPrompter(strings.NewReader(""), io.Discard)
	ok, err := p.Prompt(context.Background(), question)
	if ok || !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v %v", ok, err)
	}
}

func TestPrompter_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := console.NewPrompter(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := p.Prompt(ctx, question)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v %v", ok, err)
	}
}
