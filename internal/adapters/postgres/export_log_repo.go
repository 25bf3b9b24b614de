package postgres

import (
	"context"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// ExportLogRepo implements ports.ExportLogRepository.
type ExportLogRepo struct {
	db *DB
}

func NewExportLogRepo(db *DB) *ExportLogRepo { return &ExportLogRepo{db: db} }

// Record stores an event. Redelivered events are ignored.
func (r *ExportLogRepo) Record(ctx context.Context, e *domain.ExportEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO export_log (id, trail_name, format, variant, filename, bytes, exported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.TrailName, string(e.Format), string(e.Variant), e.Filename, e.Bytes, e.At)
	return err
}

func (r *ExportLogRepo) Recent(ctx context.Context, limit int) ([]domain.ExportEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, trail_name, format, variant, filename, bytes, exported_at
		FROM export_log ORDER BY exported_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ExportEvent
	for rows.Next() {
		var (
			e               domain.ExportEvent
			format, variant string
		)
		if err := rows.Scan(&e.ID, &e.TrailName, &format, &variant, &e.Filename, &e.Bytes, &e.At); err != nil {
			return nil, err
		}
		e.Format = domain.ExportFormat(format)
		e.Variant = domain.ExportVariant(variant)
		events = append(events, e)
	}
	return events, rows.Err()
}
