package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const auditColumns = `id, tenant_id, actor_id, entity_type, entity_id, action, changes, created_at`

// AuditRepository stores audit entries. There is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, s *persistence.Session, entry *domain.AuditEntry) error
	ListForEntity(ctx context.Context, s *persistence.Session, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]domain.AuditEntry, error)
	ListForActor(ctx context.Context, s *persistence.Session, tenantID, actorID uuid.UUID, limit int) ([]domain.AuditEntry, error)
}

type auditRepository struct{}

// NewAuditRepository builds repository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

func (r *auditRepository) Append(ctx context.Context, s *persistence.Session, entry *domain.AuditEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}
	query := `
        INSERT INTO audit_log (tenant_id, actor_id, entity_type, entity_id, action, changes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING ` + auditColumns
	out, err := persistence.Optional[domain.AuditEntry](ctx, s, query,
		entry.TenantID,
		entry.ActorID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		changes,
	)
	if err != nil {
		return err
	}
	*entry = *out
	return nil
}

func (r *auditRepository) ListForEntity(ctx context.Context, s *persistence.Session, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log
        WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3
        ORDER BY created_at DESC, id DESC`
	return persistence.All[domain.AuditEntry](ctx, s, query, tenantID, entityType, entityID)
}

func (r *auditRepository) ListForActor(ctx context.Context, s *persistence.Session, tenantID, actorID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_log WHERE tenant_id=$1 AND actor_id=$2 ORDER BY created_at DESC, id DESC LIMIT %d`,
		auditColumns, ClampLimit(limit))
	return persistence.All[domain.AuditEntry](ctx, s, query, tenantID, actorID)
}
