package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/trailexport/internal/pkg/config"
	"github.com/samirrijal/trailexport/migrations"
)

const downSuffix = ".down.sql"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("trailexport-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		err = up(ctx, pool)
	case "down":
		err = down(ctx, pool)
	case "status":
		err = status(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
}

// steps returns the forward migrations in name order.
func steps() ([]string, error) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if !strings.HasSuffix(n, downSuffix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func applied(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

// run executes sql and records the bookkeeping change in one transaction.
func run(ctx context.Context, pool *pgxpool.Pool, sql, record string, args ...any) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, record, args...)
		return err
	})
}

func up(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := steps()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}

	for _, n := range names {
		if done[n] {
			continue
		}
		data, err := migrations.FS.ReadFile(n)
		if err != nil {
			return fmt.Errorf("read %s: %w", n, err)
		}
		if err := run(ctx, pool, string(data), `INSERT INTO schema_migrations (name) VALUES ($1)`, n); err != nil {
			return fmt.Errorf("exec %s: %w", n, err)
		}
		fmt.Printf("OK  %s\n", n)
	}

	log.Println("all migrations applied")
	return nil
}

// down reverts the most recent applied migration.
func down(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := steps()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}

	for i := len(names) - 1; i >= 0; i-- {
		n := names[i]
		if !done[n] {
			continue
		}
		rev := strings.TrimSuffix(n, ".sql") + downSuffix
		data, err := migrations.FS.ReadFile(rev)
		if err != nil {
			return fmt.Errorf("%s has no down migration: %w", n, err)
		}
		if err := run(ctx, pool, string(data), `DELETE FROM schema_migrations WHERE name = $1`, n); err != nil {
			return fmt.Errorf("exec %s: %w", rev, err)
		}
		fmt.Printf("OK  %s\n", rev)
		return nil
	}

	log.Println("nothing to revert")
	return nil
}

func status(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := steps()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}
	for _, n := range names {
		state := "pending"
		if done[n] {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, n)
	}
	return nil
}
