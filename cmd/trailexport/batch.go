package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
	"github.com/samirrijal/trailexport/internal/workflows"
)

func runBatch(ctx context.Context, e env, args []string) error {
	fs := pflag.NewFlagSet("batch", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var (
		formats   = fs.StringSlice("formats", []string{"kml", "gpx"}, "formats to export")
		limit     = fs.Int("limit", workflows.DefaultBatchLimit, "catalog trails exported when none are named")
		lineColor = fs.String("line-color", "", "KML line colour as #RRGGBB")
		noWait    = fs.Bool("no-wait", false, "return once the workflow is started")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.Dial(client.Options{
		HostPort: e.cfg.Temporal.HostPort,
		Logger:   logging.New(e.stderr, "warn", "text"),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "batch-export-" + uuid.NewString(),
		TaskQueue: e.cfg.Temporal.TaskQueue,
	}, workflows.BatchExportWorkflow, workflows.BatchExportInput{
		TrailRefs: fs.Args(),
		Formats:   *formats,
		Settings:  domain.ExportSettings{LineColor: *lineColor},
		Limit:     *limit,
	})
	if err != nil {
		return fmt.Errorf("start batch: %w", err)
	}
	fmt.Fprintln(e.stderr, dimStyle.Render("started "+we.GetID()))
	if *noWait {
		return nil
	}

	var res workflows.BatchExportResult
	if err := we.Get(ctx, &res); err != nil {
		return fmt.Errorf("batch %s: %w", we.GetID(), err)
	}
	for _, f := range res.Files {
		fmt.Fprintln(e.stdout, f.Filename)
	}
	fmt.Fprintln(e.stderr, successStyle.Render(fmt.Sprintf("%d files exported", len(res.Files))))
	return nil
}
