// Package schema owns the database DDL. Statements are idempotent so Apply
// can run on every deploy.
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var ddl string

// Statements splits the embedded DDL into individual statements.
func Statements() []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Apply executes every statement inside one transaction.
func Apply(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range Statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
