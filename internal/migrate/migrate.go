// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/lexes/migrations"
)

// Command is a goose operation run against an open database.
type Command func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

// Up runs all pending migrations.
func Up(ctx context.Context, dsn string) error { return run(ctx, dsn, goose.UpContext) }

// Down rolls back the latest migration.
func Down(ctx context.Context, dsn string) error { return run(ctx, dsn, goose.DownContext) }

// Status prints the applied/pending state of every migration.
func Status(ctx context.Context, dsn string) error {
	return run(ctx, dsn, func(ctx context.Context, db *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

func run(ctx context.Context, dsn string, cmd Command) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := cmd(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
