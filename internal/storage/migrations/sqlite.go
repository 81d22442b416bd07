package migrations

import (
	"context"
	"database/sql"
)

// RunSqliteMigrations applies the embedded SQLite files one statement at a time.
func RunSqliteMigrations(ctx context.Context, db *sql.DB) error {
	return apply(SqliteFS, "sqlite", func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}
