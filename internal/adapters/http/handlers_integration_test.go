//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/trailexport/internal/adapters/http"
	"github.com/samirrijal/trailexport/internal/adapters/postgres"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/config"
)

// setupTestDB connects to the test database. The schema in migrations/
// must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("trailexport-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with real repos and no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	exportLog := postgres.NewExportLogRepo(db)
	exports := usecases.NewExportService(usecases.ExportDeps{})
	return &http.Dependencies{
		Exports:   exports,
		Trails:    usecases.NewTrailService(postgres.NewTrailRepo(db), nil, exports),
		ExportLog: exportLog,
		DB:        db,
	}
}

// seedTestTrail stores a short trail under slug and returns its UUID.
func seedTestTrail(t *testing.T, deps *http.Dependencies, slug string) string {
	trail := &domain.Trail{
		Slug:     slug,
		Name:     "Test Trail " + slug,
		Color:    "#1565C0",
		Geometry: json.RawMessage(`{"type":"LineString","coordinates":[[19.93,50.05],[19.95,50.06],[19.97,50.08]]}`),
	}
	if err := deps.Trails.Save(context.Background(), trail); err != nil {
		t.Fatalf("seed trail: %v", err)
	}
	return trail.ID
}

func TestGetTrail_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	deps := setupTestDeps(t, db)
	slug := "test_integ_" + time.Now().Format("20060102150405")
	id := seedTestTrail(t, deps, slug)
	app := setupApp(deps)

	for _, ref := range []string{slug, id} {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/trails/"+ref, nil), -1)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("%s: expected 200, got %d", ref, resp.StatusCode)
		}

		var trail domain.Trail
		if err := json.NewDecoder(resp.Body).Decode(&trail); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if trail.Slug != slug {
			t.Errorf("expected slug %s, got %s", slug, trail.Slug)
		}
		if trail.LengthKm <= 0 {
			t.Errorf("expected the stored length to be computed, got %v", trail.LengthKm)
		}
	}
}

func TestListTrails_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	deps := setupTestDeps(t, db)
	seedTestTrail(t, deps, "test_list_a")
	seedTestTrail(t, deps, "test_list_b")
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/trails", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Trail      `json:"data"`
		Pagination struct{ Total int } `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Pagination.Total < 2 {
		t.Errorf("expected at least 2 trails, got %d", result.Pagination.Total)
	}
}

func TestTrailExport_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	deps := setupTestDeps(t, db)
	slug := "test_export_" + time.Now().Format("20060102150405")
	seedTestTrail(t, deps, slug)
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/trails/"+slug+"/export/kml", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Test Trail "+slug) {
		t.Errorf("expected the trail name in the document")
	}
}

func TestRecentExports_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	deps := setupTestDeps(t, db)
	event := &domain.ExportEvent{
		ID:        uuid.NewString(),
		TrailName: "Integration",
		Format:    domain.FormatGPX,
		Variant:   domain.VariantSimple,
		Filename:  "Integration.gpx",
		Bytes:     512,
		At:        time.Now().UTC().Add(time.Hour),
	}
	if err := deps.ExportLog.Record(context.Background(), event); err != nil {
		t.Fatalf("record event: %v", err)
	}
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/exports/recent?limit=1", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var events []domain.ExportEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(events) != 1 || events[0].ID != event.ID {
		t.Errorf("expected the newest event first, got %+v", events)
	}
}
