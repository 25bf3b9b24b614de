// Package filesystem delivers export artifacts into a local directory and
// hands navigation links to the desktop.
package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Delivery writes artifacts into Dir. Files are written to a temporary name
// and renamed, so a reader never sees a partial artifact.
type Delivery struct {
	dir string
	log *slog.Logger
}

func NewDelivery(dir string, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{dir: dir, log: logger}
}

// Path returns where an artifact named filename ends up.
func (d *Delivery) Path(filename string) string {
	return filepath.Join(d.dir, SafeName(filename))
}

func (d *Delivery) Deliver(ctx context.Context, a domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := d.Path(a.Filename)
	f, err := os.CreateTemp(d.dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(a.Content); err != nil {
		return fmt.Errorf("write %s: %w", a.Filename, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", a.Filename, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", a.Filename, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", a.Filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", a.Filename, err)
	}
	ok = true

	d.log.Info("artifact delivered", "path", path, "bytes", len(a.Content), "mime", a.MIMEType)
	return nil
}

// Remove deletes a previously delivered artifact. A missing file is not an error.
func (d *Delivery) Remove(filename string) error {
	err := os.Remove(d.Path(filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SafeName strips directories and characters that are unsafe in file names.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "export"
	}
	return name
}
