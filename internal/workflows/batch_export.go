package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// DefaultBatchLimit caps the catalog trails exported when no refs are given.
const DefaultBatchLimit = 50

// BatchExportInput is the input of BatchExportWorkflow. Empty TrailRefs
// exports the first Limit catalog trails.
type BatchExportInput struct {
	TrailRefs []string
	Formats   []string
	Settings  domain.ExportSettings
	Limit     int
}

// BatchExportResult lists the delivered artifacts.
type BatchExportResult struct {
	Files []ExportedFile
}

// BatchExportWorkflow exports every trail in every format. A batch is all or
// nothing: when an export fails, the files already delivered are removed.
func BatchExportWorkflow(ctx workflow.Context, in BatchExportInput) (BatchExportResult, error) {
	logger := workflow.GetLogger(ctx)

	if len(in.Formats) == 0 {
		return BatchExportResult{}, temporal.NewNonRetryableApplicationError("no formats requested", "BadInput", nil)
	}
	for _, f := range in.Formats {
		if _, err := domain.ParseExportFormat(f); err != nil {
			return BatchExportResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "BadInput", err)
		}
	}
	if in.Limit <= 0 {
		in.Limit = DefaultBatchLimit
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"BadInput"},
		},
	})

	var refs []string
	if err := workflow.ExecuteActivity(ctx, ActivityResolveTrails, in.TrailRefs, in.Limit).Get(ctx, &refs); err != nil {
		return BatchExportResult{}, err
	}
	logger.Info("Starting batch export", "trails", len(refs), "formats", len(in.Formats))

	var res BatchExportResult
	for _, ref := range refs {
		for _, f := range in.Formats {
			var file ExportedFile
			task := ExportTask{Ref: ref, Format: f, Settings: in.Settings}
			if err := workflow.ExecuteActivity(ctx, ActivityExportTrail, task).Get(ctx, &file); err != nil {
				logger.Warn("export failed, compensating", "trail", ref, "format", f, "error", err)
				compensate(ctx, res.Files)
				return BatchExportResult{}, fmt.Errorf("batch export %s/%s: %w", ref, f, err)
			}
			res.Files = append(res.Files, file)
		}
	}

	logger.Info("Batch export finished", "files", len(res.Files))
	return res, nil
}

// compensate removes delivered files, newest first. Failures are logged.
func compensate(ctx workflow.Context, files []ExportedFile) {
	logger := workflow.GetLogger(ctx)
	for i := len(files) - 1; i >= 0; i-- {
		if err := workflow.ExecuteActivity(ctx, ActivityRemoveExport, files[i].Filename).Get(ctx, nil); err != nil {
			logger.Error("compensation failed", "file", files[i].Filename, "error", err)
		}
	}
}
