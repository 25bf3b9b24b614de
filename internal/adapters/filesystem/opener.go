package filesystem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
)

// BrowserOpener opens URLs with the platform's default handler.
type BrowserOpener struct {
	log *slog.Logger
}

func NewBrowserOpener(logger *slog.Logger) *BrowserOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserOpener{log: logger}
}

func (o *BrowserOpener) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// not bound to ctx: the handler outlives the request that opened it
	cmd, err := platformCommand(url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	o.log.Info("navigation link opened", "url", url)
	// the handler detaches; reap it without blocking the caller
	go func() { _ = cmd.Wait() }()
	return nil
}

func platformCommand(url string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// PrintOpener writes URLs to w, one per line. Used for headless runs.
type PrintOpener struct {
	W io.Writer
}

func (o PrintOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintln(o.W, url)
	return err
}
