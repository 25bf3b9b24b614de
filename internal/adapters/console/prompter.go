// Package console asks export prompts on a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	buttonStyle = lipgloss.NewStyle().Bold(true)
)

// Prompter implements ports.Prompter on a line-oriented reader. The first
// character of the answer decides: y confirms, anything else cancels.
// Prompts without a cancel text only wait for Enter.
type Prompter struct {
	out io.Writer

	once  sync.Once
	in    io.Reader
	lines chan string
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// start launches the single reader goroutine. Lines not consumed by a
// cancelled prompt are delivered to the next one.
func (p *Prompter) start() {
	p.lines = make(chan string)
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(p.in)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
}

func (p *Prompter) Prompt(ctx context.Context, req domain.PromptRequest) (bool, error) {
	p.once.Do(p.start)

	fmt.Fprintln(p.out, titleStyle.Render(req.Title))
	if req.Message != "" {
		fmt.Fprintln(p.out, req.Message)
	}
	if req.CancelText == "" {
		fmt.Fprintf(p.out, "%s %s ", buttonStyle.Render(req.ConfirmText), hintStyle.Render("[Enter]"))
	} else {
		fmt.Fprintf(p.out, "%s / %s %s ",
			buttonStyle.Render(req.ConfirmText), req.CancelText, hintStyle.Render("[y/N]"))
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out)
			return false, io.EOF
		}
		if req.CancelText == "" {
			return true, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return strings.HasPrefix(answer, "y"), nil
	}
}
