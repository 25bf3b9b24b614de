package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// TrailRepo implements ports.TrailRepository.
type TrailRepo struct {
	db *DB
}

func NewTrailRepo(db *DB) *TrailRepo { return &TrailRepo{db: db} }

const trailColumns = `id, slug, name, classification, color, length_km, geometry, created_at`

func (r *TrailRepo) Upsert(ctx context.Context, t *domain.Trail) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO trails (slug, name, classification, color, length_km, geometry)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, classification = EXCLUDED.classification,
		    color = EXCLUDED.color, length_km = EXCLUDED.length_km, geometry = EXCLUDED.geometry
		RETURNING id, created_at
	`, t.Slug, t.Name, t.Classification, t.Color, t.LengthKm, []byte(t.Geometry)).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert trail %s: %w", t.Slug, err)
	}
	return nil
}

// UpsertBatch stores many trails in one round trip.
func (r *TrailRepo) UpsertBatch(ctx context.Context, trails []domain.Trail) error {
	batch := &pgx.Batch{}
	for _, t := range trails {
		batch.Queue(`
			INSERT INTO trails (slug, name, classification, color, length_km, geometry)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (slug) DO UPDATE
			SET name = EXCLUDED.name, geometry = EXCLUDED.geometry, length_km = EXCLUDED.length_km
		`, t.Slug, t.Name, t.Classification, t.Color, t.LengthKm, []byte(t.Geometry))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range trails {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func (r *TrailRepo) GetByID(ctx context.Context, id string) (*domain.Trail, error) {
	return r.getOne(ctx, `SELECT `+trailColumns+` FROM trails WHERE id = $1`, id)
}

func (r *TrailRepo) GetBySlug(ctx context.Context, slug string) (*domain.Trail, error) {
	return r.getOne(ctx, `SELECT `+trailColumns+` FROM trails WHERE slug = $1`, slug)
}

func (r *TrailRepo) getOne(ctx context.Context, query, arg string) (*domain.Trail, error) {
	t, err := scanTrail(r.db.Pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTrailNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TrailRepo) List(ctx context.Context, limit, offset int) ([]domain.Trail, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+trailColumns+`
		FROM trails ORDER BY name LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trails []domain.Trail
	for rows.Next() {
		t, err := scanTrail(rows)
		if err != nil {
			return nil, err
		}
		trails = append(trails, *t)
	}
	return trails, rows.Err()
}

func (r *TrailRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM trails`).Scan(&n)
	return n, err
}

func scanTrail(row pgx.Row) (*domain.Trail, error) {
	var (
		t    domain.Trail
		geom []byte
	)
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Classification, &t.Color,
		&t.LengthKm, &geom, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Geometry = geom
	return &t, nil
}
