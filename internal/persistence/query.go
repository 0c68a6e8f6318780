package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/field-service/pkg/util"
)

// All runs a query and collects every row into T by column name. No rows is an
// empty slice, not an error.
func All[T any](ctx context.Context, s *Session, sql string, args ...any) ([]T, error) {
	q, err := s.querier()
	if err != nil {
		return nil, util.NewInfrastructure("query", err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate("query", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, translate("collect rows", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Optional returns the first row as *T, or nil when the query matched nothing.
func Optional[T any](ctx context.Context, s *Session, sql string, args ...any) (*T, error) {
	q, err := s.querier()
	if err != nil {
		return nil, util.NewInfrastructure("query", err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate("query", err)
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("collect row", err)
	}
	return out, nil
}

// Scalar returns the single column of the single row. An absent row is an error.
func Scalar[T any](ctx context.Context, s *Session, sql string, args ...any) (T, error) {
	var zero T
	q, err := s.querier()
	if err != nil {
		return zero, util.NewInfrastructure("query", err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return zero, translate("query", err)
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowTo[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, util.NewNotFound("row", nil)
	}
	if err != nil {
		return zero, translate("collect scalar", err)
	}
	return out, nil
}

// Exec runs a statement and returns the rows affected.
func Exec(ctx context.Context, s *Session, sql string, args ...any) (int64, error) {
	q, err := s.querier()
	if err != nil {
		return 0, util.NewInfrastructure("exec", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, translate("exec", err)
	}
	return tag.RowsAffected(), nil
}

// translate maps driver errors onto domain errors. Constraint violations caused by input
// become validation or conflict errors; everything else is infrastructure.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return util.NewConflict("record already exists", map[string]any{"constraint": pgErr.ConstraintName})
		case "23503":
			// a delete blocked by rows that still point at the target
			if strings.HasPrefix(pgErr.Message, "update or delete on table") {
				return util.NewConflict("record is still referenced", map[string]any{"constraint": pgErr.ConstraintName})
			}
			return util.NewNotFound("referenced record", map[string]any{"constraint": pgErr.ConstraintName})
		case "23502", "23514", "22P02":
			return util.NewValidationError("invalid value", map[string]any{"constraint": pgErr.ConstraintName})
		case "42501":
			// row level security rejected a write for another tenant
			return util.NewNotFound("record", nil)
		}
	}
	return util.NewInfrastructure(op, err)
}
