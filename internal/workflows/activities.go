package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

// Activity names, registered from the BatchExportActivities methods.
const (
	ActivityResolveTrails = "ResolveTrails"
	ActivityExportTrail   = "ExportTrail"
	ActivityRemoveExport  = "RemoveExport"
)

// OutputStore is where batch artifacts are written and, on rollback, removed.
type OutputStore interface {
	ports.FileDelivery
	Remove(filename string) error
}

// ExportTask is one trail exported in one format.
type ExportTask struct {
	Ref      string
	Format   string
	Settings domain.ExportSettings
}

// ExportedFile is an artifact delivered by a batch.
type ExportedFile struct {
	Ref      string
	Format   string
	Filename string
}

// BatchExportActivities holds the activity implementations of the batch
// export workflow.
type BatchExportActivities struct {
	Trails *usecases.TrailService
	Output OutputStore
	// Maps builds the surface a PNG is captured from; nil disables PNG.
	Maps   func(routes []byte, lineColor string) (ports.MapSurface, error)
	Logger *slog.Logger
}

func (a *BatchExportActivities) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// ResolveTrails returns refs unchanged, or the slugs of the first limit
// catalog trails when refs is empty.
func (a *BatchExportActivities) ResolveTrails(ctx context.Context, refs []string, limit int) ([]string, error) {
	if len(refs) > 0 {
		return refs, nil
	}
	trails, err := a.Trails.List(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list trails: %w", err)
	}
	out := make([]string, 0, len(trails))
	for _, t := range trails {
		out = append(out, t.Slug)
	}
	return out, nil
}

// ExportTrail exports one trail into the output store.
func (a *BatchExportActivities) ExportTrail(ctx context.Context, task ExportTask) (ExportedFile, error) {
	opts := usecases.ExportOptions{ExportSettings: task.Settings, Delivery: a.Output}

	f, err := domain.ParseExportFormat(task.Format)
	if err != nil {
		return ExportedFile{}, err
	}
	if f == domain.FormatPNG && a.Maps != nil {
		t, err := a.Trails.Get(ctx, task.Ref)
		if err != nil {
			return ExportedFile{}, err
		}
		track, err := usecases.RequireTrack([]byte(t.Geometry))
		if err != nil {
			return ExportedFile{}, fmt.Errorf("trail %s: %w", task.Ref, err)
		}
		routes, err := usecases.SelectedFeatureCollection(track, t.Name)
		if err != nil {
			return ExportedFile{}, err
		}
		color := task.Settings.LineColor
		if color == "" {
			color = t.Color
		}
		if opts.Map, err = a.Maps(routes, color); err != nil {
			return ExportedFile{}, fmt.Errorf("build map: %w", err)
		}
		opts.SurfaceID = "batch-" + uuid.NewString()
	}

	_, res, err := a.Trails.Export(ctx, task.Ref, task.Format, opts)
	if err != nil {
		return ExportedFile{}, fmt.Errorf("export %s as %s: %w", task.Ref, task.Format, err)
	}
	a.logger().Info("batch artifact exported", "trail", task.Ref, "file", res.Filename)
	return ExportedFile{Ref: task.Ref, Format: string(res.Format), Filename: res.Filename}, nil
}

// RemoveExport deletes a delivered artifact (saga compensation).
func (a *BatchExportActivities) RemoveExport(ctx context.Context, filename string) error {
	if err := a.Output.Remove(filename); err != nil {
		return fmt.Errorf("remove %s: %w", filename, err)
	}
	a.logger().Info("batch artifact removed", "file", filename)
	return nil
}
