package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/trailexport/internal/adapters/postgres"
	"github.com/samirrijal/trailexport/internal/core/usecases"
	"github.com/samirrijal/trailexport/internal/pkg/config"
	"github.com/samirrijal/trailexport/internal/pkg/logging"
)

// Manifest lists the trail datasets to load into the catalog.
type Manifest struct {
	Source   string         `json:"source"`
	Datasets []DatasetEntry `json:"datasets"`
}

// DatasetEntry is one GeoJSON FeatureCollection, fetched from URL or read
// from Path.
type DatasetEntry struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	URL            string `json:"url,omitempty"`
	Path           string `json:"path,omitempty"`
	Classification string `json:"classification,omitempty"`
}

func main() {
	cfg, err := config.Load("trailexport-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	trails := usecases.NewTrailService(postgres.NewTrailRepo(db), nil, nil)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("trail ingestion", "datasets", len(manifest.Datasets), "source", manifest.Source)

	// Optional second argument: comma separated dataset slugs
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, ds := range manifest.Datasets {
		if len(slugFilter) > 0 && !slugFilter[ds.Slug] {
			continue
		}

		wg.Add(1)
		go func(d DatasetEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestDataset(ctx, trails, client, d); err != nil {
				slog.Error("dataset failed", "dataset", d.Slug, "error", err)
			}
		}(ds)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

func ingestDataset(ctx context.Context, trails *usecases.TrailService, client *http.Client, d DatasetEntry) error {
	logger := slog.With("dataset", d.Slug)

	body, err := load(ctx, client, d)
	if err != nil {
		return err
	}

	parsed, skipped, err := usecases.ParseTrailCollection(body, d.Classification)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn("features without a line geometry skipped", "count", skipped)
	}

	n, err := trails.Import(ctx, parsed)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Info("dataset imported", "trails", n)
	return nil
}

func load(ctx context.Context, client *http.Client, d DatasetEntry) ([]byte, error) {
	if d.URL == "" {
		if d.Path == "" {
			return nil, fmt.Errorf("dataset %s has neither url nor path", d.Slug)
		}
		return os.ReadFile(d.Path)
	}

	slog.Info("downloading dataset", "dataset", d.Slug, "url", d.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, d.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
