package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/samirrijal/trailexport/internal/adapters/console"
	"github.com/samirrijal/trailexport/internal/adapters/filesystem"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
)

func runLink(ctx context.Context, e env, args []string) error {
	fs := pflag.NewFlagSet("link", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var (
		pick = fs.String("trail", "", "name of the feature to use from a collection")
		from = fs.String("from", "", "start the directions at lat,lon")
		open = fs.Bool("open", false, "open the link in the browser")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("link needs exactly one input file")
	}

	in, err := readTrail(fs.Arg(0), *pick)
	if err != nil {
		return err
	}
	origin, err := parseOrigin(*from)
	if err != nil {
		return err
	}

	logger := logging.New(e.stderr, e.cfg.Log.Level, "text")
	svc := usecases.NewExportService(usecases.ExportDeps{
		Linker: usecases.NewNavigationLinker(e.cfg.Export.MapsBaseURL),
		Logger: logger,
	})

	if !*open {
		url, err := svc.NavigationLink(ctx, in.geometry, origin)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, url)
		return nil
	}

	opts := usecases.ExportOptions{Opener: filesystem.NewBrowserOpener(logger)}
	if isTerminal(e.stdin) {
		opts.Prompter = console.NewPrompter(e.stdin, e.stderr)
	}
	url, err := svc.OpenInMaps(ctx, in.geometry, in.name, origin, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stderr, dimStyle.Render("opened "+url))
	return nil
}
