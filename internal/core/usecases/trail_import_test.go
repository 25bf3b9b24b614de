package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

const catalogCollection = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"Dolina Będkowska","classification":"blue","color":"#1565C0"},
	 "geometry":{"type":"LineString","coordinates":[[19.75,50.14],[19.76,50.15]]}},
	{"type":"Feature","properties":{"name":"Shelter"},
	 "geometry":{"type":"Point","coordinates":[19.7,50.1]}},
	{"type":"Feature","properties":{"slug":"ridge","name":"Ridge"},
	 "geometry":{"type":"MultiLineString","coordinates":[[[19.8,50.2],[19.81,50.21]],[[19.82,50.22],[19.83,50.23]]]}},
	{"type":"Feature","properties":{},
	 "geometry":{"type":"LineString","coordinates":[[19.9,50.3],[19.91,50.31]]}}
]}`

type batchTrailRepo struct {
	mockTrailRepo
	batches [][]domain.Trail
}

func (m *batchTrailRepo) UpsertBatch(ctx context.Context, trails []domain.Trail) error {
	m.batches = append(m.batches, trails)
	return nil
}

func TestParseTrailCollection(t *testing.T) {
	trails, skipped, err := usecases.ParseTrailCollection([]byte(catalogCollection), "unmarked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected the point feature to be skipped, got %d", skipped)
	}
	if len(trails) != 3 {
		t.Fatalf("expected 3 trails, got %d", len(trails))
	}

	first := trails[0]
	if first.Slug != "dolina-bedkowska" {
		t.Errorf("expected slug dolina-bedkowska, got %q", first.Slug)
	}
	if first.Classification != "blue" || first.Color != "#1565C0" {
		t.Errorf("expected properties copied, got %+v", first)
	}
	if trails[1].Slug != "ridge" {
		t.Errorf("expected explicit slug, got %q", trails[1].Slug)
	}
	if trails[2].Name != "Trail 4" || trails[2].Classification != "unmarked" {
		t.Errorf("expected fallback name and classification, got %+v", trails[2])
	}
	if trails[2].Color != domain.DefaultLineColor {
		t.Errorf("expected default color, got %q", trails[2].Color)
	}
}

func TestParseTrailCollection_Invalid(t *testing.T) {
	if _, _, err := usecases.ParseTrailCollection([]byte(`{"type":`), ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Ridge Walk":              "ridge-walk",
		"  Żleb   Kulczyńskiego ": "zleb-kulczynskiego",
		"Loop #2 (short)":         "loop-2-short",
		"---":                     "",
	}
	for in, want := range tests {
		if got := usecases.Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrailService_Import_Batch(t *testing.T) {
	repo := &batchTrailRepo{}
	svc := usecases.NewTrailService(repo, nil, usecases.NewExportService(usecases.ExportDeps{}))

	trails, _, err := usecases.ParseTrailCollection([]byte(catalogCollection), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, err := svc.Import(context.Background(), trails)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 || len(repo.batches) != 1 || len(repo.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3, got n=%d batches=%d", n, len(repo.batches))
	}
	for _, tr := range repo.batches[0] {
		if tr.LengthKm <= 0 {
			t.Errorf("expected a computed length for %s", tr.Slug)
		}
	}
}

func TestTrailService_Import_FallsBackToUpsert(t *testing.T) {
	var stored []string
	repo := &mockTrailRepo{
		upsertFn: func(ctx context.Context, tr *domain.Trail) error {
			if tr.Slug == "ridge" {
				return errors.New("db down")
			}
			stored = append(stored, tr.Slug)
			return nil
		},
	}
	svc := usecases.NewTrailService(repo, nil, usecases.NewExportService(usecases.ExportDeps{}))

	trails, _, _ := usecases.ParseTrailCollection([]byte(catalogCollection), "")
	n, err := svc.Import(context.Background(), trails)
	if err == nil {
		t.Fatal("expected the repository error")
	}
	if n != 1 || len(stored) != 1 {
		t.Errorf("expected one trail stored before the failure, got n=%d stored=%v", n, stored)
	}
}

func TestTrailService_Import_RejectsEmptyGeometry(t *testing.T) {
	svc := usecases.NewTrailService(&mockTrailRepo{}, nil, usecases.NewExportService(usecases.ExportDeps{}))
	_, err := svc.Import(context.Background(), []domain.Trail{{Slug: "x", Name: "X", Geometry: []byte(`{"type":"Point","coordinates":[1,2]}`)}})
	if !errors.Is(err, domain.ErrEmptyGeometry) {
		t.Errorf("expected ErrEmptyGeometry, got %v", err)
	}
}
