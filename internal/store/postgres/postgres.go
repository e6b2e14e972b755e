// Package postgres implements store.Remote on PostgreSQL, one table per
// collection.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/store"
)

const DefaultTablePrefix = "nanny_match_"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Querier is the subset of *pgxpool.Pool the remote needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool parses dsn, connects and pings the database.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type Remote struct {
	q       Querier
	prefix  string
	builder squirrel.StatementBuilderType
}

func New(q Querier, tablePrefix string) *Remote {
	if tablePrefix == "" {
		tablePrefix = DefaultTablePrefix
	}
	return &Remote{
		q:       q,
		prefix:  tablePrefix,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Remote) table(collection string) (string, error) {
	name := r.prefix + collection
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("%w: invalid table name %q", domain.ErrValidation, name)
	}
	return name, nil
}

// EnsureSchema creates the tables for collections when missing.
func (r *Remote) EnsureSchema(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		table, err := r.table(c)
		if err != nil {
			return err
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)
		if _, err := r.q.Exec(ctx, ddl); err != nil {
			return mapError(err, c, "")
		}
	}
	return nil
}

func (r *Remote) Upsert(ctx context.Context, collection, id string, payload []byte) (store.Record, error) {
	table, err := r.table(collection)
	if err != nil {
		return store.Record{}, err
	}

	query := r.builder.
		Insert(table).
		Columns("id", "payload").
		Values(id, payload).
		Suffix("ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload RETURNING id, payload, created_at")

	sql, args, err := query.ToSql()
	if err != nil {
		return store.Record{}, fmt.Errorf("build upsert: %w", err)
	}

	var rec store.Record
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&rec.ID, &rec.Payload, &rec.CreatedAt); err != nil {
		return store.Record{}, mapError(err, collection, id)
	}
	return rec, nil
}

func (r *Remote) Get(ctx context.Context, collection, id string) (store.Record, error) {
	table, err := r.table(collection)
	if err != nil {
		return store.Record{}, err
	}

	sql, args, err := r.builder.
		Select("id", "payload", "created_at").
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return store.Record{}, fmt.Errorf("build get: %w", err)
	}

	var rec store.Record
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&rec.ID, &rec.Payload, &rec.CreatedAt); err != nil {
		return store.Record{}, mapError(err, collection, id)
	}
	return rec, nil
}

func (r *Remote) List(ctx context.Context, collection string) ([]store.Record, error) {
	table, err := r.table(collection)
	if err != nil {
		return nil, err
	}

	sql, args, err := r.builder.
		Select("id", "payload", "created_at").
		From(table).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, collection, "")
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		var rec store.Record
		if err := rows.Scan(&rec.ID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, mapError(err, collection, "")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, collection, "")
	}

	return records, nil
}

func (r *Remote) DeleteAll(ctx context.Context, collection string) (int, error) {
	table, err := r.table(collection)
	if err != nil {
		return 0, err
	}

	sql, args, err := r.builder.Delete(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, collection, "")
	}
	return int(tag.RowsAffected()), nil
}

// DeleteByPrefix removes rows whose id starts with any of prefixes. It
// matches with starts_with so '_' in prefixes is literal.
func (r *Remote) DeleteByPrefix(ctx context.Context, collection string, prefixes []string) (int, error) {
	table, err := r.table(collection)
	if err != nil {
		return 0, err
	}
	if len(prefixes) == 0 {
		return 0, nil
	}

	cond := squirrel.Or{}
	for _, p := range prefixes {
		cond = append(cond, squirrel.Expr("starts_with(id, ?)", p))
	}

	sql, args, err := r.builder.Delete(table).Where(cond).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, collection, "")
	}
	return int(tag.RowsAffected()), nil
}

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, collection, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", collection, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23514": // invalid_text_representation, check_violation
			return fmt.Errorf("%s %s: %w: %s", collection, id, domain.ErrValidation, pgErr.Message)
		}
	}

	return fmt.Errorf("%s %s: %w", collection, id, err)
}
