package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"lumina/internal/config"
	"lumina/internal/repository/postgres"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot run --drop-tables in production environment")
	}

	log.Printf("Setting up schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	sql := fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
	`, tables.Messages, tables.Sessions)
	_, err := pool.Exec(ctx, sql)
	return err
}

func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	sql := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS pg_trgm;

		CREATE TABLE IF NOT EXISTS %[1]s (
			id              UUID PRIMARY KEY,
			user_id         UUID NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			canvas_content  TEXT
		);
		CREATE INDEX IF NOT EXISTS %[1]s_user_activity_idx
			ON %[1]s (user_id, last_message_at DESC);

		CREATE TABLE IF NOT EXISTS %[2]s (
			id         UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			kind       TEXT NOT NULL DEFAULT 'text',
			image_url  TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS %[2]s_session_idx
			ON %[2]s (session_id, created_at ASC);
		CREATE INDEX IF NOT EXISTS %[2]s_content_search_idx
			ON %[2]s USING gin (content gin_trgm_ops);
	`, tables.Sessions, tables.Messages)

	_, err := pool.Exec(ctx, sql)
	return err
}
