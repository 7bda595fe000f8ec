package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface used by repositories. Every query must
// start with a `--sql <uuid>` marker line.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Transactor runs fn inside a single database transaction. fn's executor is
// bound to the transaction; returning an error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(SQLExecutor) error) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

const pgForeignKeyViolation = "23503"

type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger

	db querier
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger, db: pool}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	r.Logger.Debug().Msgf("sql[%s] exec", marker)
	tag, err := r.db.Exec(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return tag, err
	}
	r.Logger.Debug().Msgf("sql[%s] ok rows=%d", marker, tag.RowsAffected())
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.Logger.Debug().Msgf("sql[%s] query_row", marker)
	row := r.db.QueryRow(ctx, trimmed, args...)
	return loggingRow{row: row, logger: r.Logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := r.db.Query(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return loggingRows{Rows: rows, logger: r.Logger, marker: marker}, nil
}

// InTx begins a transaction on the pool and hands fn a runner bound to it.
func (r *SQLRunner) InTx(ctx context.Context, fn func(SQLExecutor) error) error {
	if r.Pool == nil {
		return errors.New("sql runner: transactions require a pool")
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&SQLRunner{Logger: r.Logger, db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsNoRows reports whether err is pgx's empty result error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsForeignKeyViolation reports whether err is a Postgres FK violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

type loggingRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.logger.Error().Err(err).Msgf("sql[%s] scan error", l.marker)
	}
	return err
}

type loggingRows struct {
	pgx.Rows
	logger zerolog.Logger
	marker string
}

func (l loggingRows) Close() {
	l.Rows.Close()
	if err := l.Rows.Err(); err != nil {
		l.logger.Error().Err(err).Msgf("sql[%s] rows error", l.marker)
	}
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	lines := strings.Split(trimmed, "\n")
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", errors.New("sql marker missing or invalid")
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.Join(lines[1:], "\n"), nil
}

var (
	_ SQLExecutor = (*SQLRunner)(nil)
	_ Transactor  = (*SQLRunner)(nil)
)
