// Package audit records one append-only entry per mutation, on the mutation's own
// transaction, and reads history back for a tenant.
package audit

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/tenant"
	"github.com/spec-kit/field-service/pkg/util"
)

const (
	keyCreated = "created"
	keyDeleted = "deleted"
	keyOld     = "old"
	keyNew     = "new"
)

// DefaultExcluded fields never appear in update diffs.
var DefaultExcluded = []string{"updated_at"}

// Trail writes and reads audit entries.
type Trail struct {
	repo  repository.AuditRepository
	admin persistence.AdminSessions
}

// NewTrail builds a trail. admin is used only by the read side.
func NewTrail(repo repository.AuditRepository, admin persistence.AdminSessions) *Trail {
	return &Trail{repo: repo, admin: admin}
}

// Record appends an entry on sess. An update with no changes writes nothing.
func (t *Trail) Record(ctx context.Context, sess *persistence.Session, entityType string, entityID uuid.UUID, action domain.AuditAction, changes map[string]any) error {
	if err := checkShape(action, changes); err != nil {
		return err
	}
	if action == domain.AuditUpdate && len(changes) == 0 {
		return nil
	}
	if sess.TenantID() == uuid.Nil {
		return util.NewValidationError("audit entry requires a tenant session", map[string]any{"reason": "MISSING_TENANT"})
	}

	entry := &domain.AuditEntry{
		TenantID:   sess.TenantID(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
	}
	if id, ok := tenant.FromContext(ctx); ok && id.ActorID != uuid.Nil {
		actor := id.ActorID
		entry.ActorID = &actor
	}
	return t.repo.Append(ctx, sess, entry)
}

// Created records {created: snapshot}.
func (t *Trail) Created(ctx context.Context, sess *persistence.Session, entityType string, entityID uuid.UUID, entity any) error {
	snap, err := Snapshot(entity)
	if err != nil {
		return err
	}
	return t.Record(ctx, sess, entityType, entityID, domain.AuditCreate, map[string]any{keyCreated: snap})
}

// Updated records the field diff between before and after.
func (t *Trail) Updated(ctx context.Context, sess *persistence.Session, entityType string, entityID uuid.UUID, before, after any) error {
	oldSnap, err := Snapshot(before)
	if err != nil {
		return err
	}
	newSnap, err := Snapshot(after)
	if err != nil {
		return err
	}
	return t.Record(ctx, sess, entityType, entityID, domain.AuditUpdate, Diff(oldSnap, newSnap))
}

// Deleted records {deleted: snapshot}.
func (t *Trail) Deleted(ctx context.Context, sess *persistence.Session, entityType string, entityID uuid.UUID, entity any) error {
	snap, err := Snapshot(entity)
	if err != nil {
		return err
	}
	return t.Record(ctx, sess, entityType, entityID, domain.AuditDelete, map[string]any{keyDeleted: snap})
}

// History returns every entry for one entity of tenantID, newest first.
func (t *Trail) History(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := t.admin.WithAdminSession(ctx, func(ctx context.Context, s *persistence.Session) error {
		var err error
		out, err = t.repo.ListForEntity(ctx, s, tenantID, entityType, entityID)
		return err
	})
	return out, err
}

// ActorActivity returns the latest entries written by actorID within tenantID.
func (t *Trail) ActorActivity(ctx context.Context, tenantID, actorID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := t.admin.WithAdminSession(ctx, func(ctx context.Context, s *persistence.Session) error {
		var err error
		out, err = t.repo.ListForActor(ctx, s, tenantID, actorID, limit)
		return err
	})
	return out, err
}

// Snapshot renders v as the JSON object stored in audit entries.
func Snapshot(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, util.NewInternalError(err)
	}
	return out, nil
}

// Diff returns {field: {old, new}} for every field that differs. updated_at and any
// extra excluded fields are skipped.
func Diff(before, after map[string]any, excluded ...string) map[string]any {
	skip := make(map[string]struct{}, len(DefaultExcluded)+len(excluded))
	for _, f := range append(append([]string{}, DefaultExcluded...), excluded...) {
		skip[f] = struct{}{}
	}

	changes := map[string]any{}
	visit := func(field string) {
		if _, ok := skip[field]; ok {
			return
		}
		if _, seen := changes[field]; seen {
			return
		}
		if !reflect.DeepEqual(before[field], after[field]) {
			changes[field] = map[string]any{keyOld: before[field], keyNew: after[field]}
		}
	}
	for field := range before {
		visit(field)
	}
	for field := range after {
		visit(field)
	}
	return changes
}

func checkShape(action domain.AuditAction, changes map[string]any) error {
	bad := func(reason string) error {
		return util.NewValidationError("malformed audit entry", map[string]any{"action": string(action), "reason": reason})
	}
	switch action {
	case domain.AuditCreate, domain.AuditDelete:
		key := keyCreated
		if action == domain.AuditDelete {
			key = keyDeleted
		}
		if len(changes) != 1 {
			return bad("expected a single " + key + " snapshot")
		}
		if _, ok := changes[key].(map[string]any); !ok {
			return bad("expected a single " + key + " snapshot")
		}
	case domain.AuditUpdate:
		for field, v := range changes {
			pair, ok := v.(map[string]any)
			if !ok || len(pair) != 2 {
				return bad("field " + field + " must carry old and new")
			}
			_, hasOld := pair[keyOld]
			_, hasNew := pair[keyNew]
			if !hasOld || !hasNew {
				return bad("field " + field + " must carry old and new")
			}
		}
	default:
		return bad("unknown action")
	}
	return nil
}
