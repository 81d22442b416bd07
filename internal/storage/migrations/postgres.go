package migrations

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a single SQL statement. *pgxpool.Pool and *pgx.Conn satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// RunPostgresMigrations applies the embedded PostgreSQL files one statement at a time.
// Every statement is written to be safe to re-run.
func RunPostgresMigrations(ctx context.Context, db Execer) error {
	return apply(PostgresFS, "postgres", func(stmt string) error {
		_, err := db.Exec(ctx, stmt)
		return err
	})
}
