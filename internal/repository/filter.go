package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/pkg/util"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ClampLimit applies the default and the upper bound to a list limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// where accumulates positional predicates.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(format string, v any) {
	w.args = append(w.args, v)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *where) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// addIn adds "column IN ($n,...)" for a non-empty set.
func addIn[T any](w *where, column string, values []T) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

// search adds a case-insensitive LIKE over the given columns.
func (w *where) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	w.args = append(w.args, "%"+strings.ToLower(term)+"%")
	p := fmt.Sprintf("$%d", len(w.args))
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("LOWER(COALESCE(%s, '')) LIKE %s", c, p)
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(w.clauses, " AND ")
}

// found turns a nil lookup result into a not found error.
func found[T any](v *T, err error, resource string, id uuid.UUID) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, util.NewNotFound(resource, map[string]any{"id": id.String()})
	}
	return v, nil
}

// affected reports a not found error when a write matched no row.
func affected(n int64, err error, resource string, id uuid.UUID) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return util.NewNotFound(resource, map[string]any{"id": id.String()})
	}
	return nil
}

// tenantOf returns the tenant a write must be stamped with.
func tenantOf(s *persistence.Session) (uuid.UUID, error) {
	if s.TenantID() == uuid.Nil {
		return uuid.Nil, util.NewValidationError("write requires a tenant session", map[string]any{"reason": "MISSING_TENANT"})
	}
	return s.TenantID(), nil
}
