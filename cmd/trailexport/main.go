// Command trailexport exports GeoJSON trails as KML, GPX or PNG files,
// prints directions links and starts batch exports of the catalog.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/config"
)

const usage = `trailexport exports hiking trails.

Usage:
  trailexport export [flags] <file.geojson>   write a KML, GPX or PNG file
  trailexport link [flags] <file.geojson>     print a directions link
  trailexport batch [flags] [trail...]        export catalog trails via the worker

Run "trailexport <command> --help" for the flags of a command.`

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// env is what a command sees of the process.
type env struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cfg, err := config.Load("trailexport-cli")
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("config: "+err.Error()))
		return 1
	}
	e := env{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}

	var cmd func(context.Context, env, []string) error
	switch args[0] {
	case "export":
		cmd = runExport
	case "link":
		cmd = runLink
	case "batch":
		cmd = runBatch
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s\n", args[0], usage)
		return 2
	}

	if err := cmd(ctx, e, args[1:]); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("error: ")+err.Error())
		return 1
	}
	return 0
}

// isTerminal reports whether v is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseOrigin reads a "lat,lon" pair.
func parseOrigin(s string) (*domain.UserLocation, error) {
	if s == "" {
		return nil, nil
	}
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("origin %q: expected lat,lon", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("origin latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return nil, fmt.Errorf("origin longitude: %w", err)
	}
	loc := &domain.UserLocation{Latitude: la, Longitude: lo}
	if !loc.Valid() {
		return nil, fmt.Errorf("origin %q is out of range", s)
	}
	return loc, nil
}

// fixedSource is a position source that always reports the same place.
type fixedSource struct {
	loc domain.UserLocation
}

func (s fixedSource) CurrentPosition(context.Context, ports.PositionRequest) (domain.UserLocation, error) {
	return s.loc, nil
}
