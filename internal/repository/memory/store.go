// Package memory is an in-process implementation of the tenant scoped store and the
// repositories. It backs development runs without a database and the test-suite, and
// keeps the same contracts: every unit of work sees only its tenant's rows, a failed unit
// of work leaves no trace, and sessions are unusable once their callback returns.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/pkg/util"
)

// Store serializes units of work over an in-memory dataset.
type Store struct {
	mu   sync.Mutex
	now  func() time.Time
	data *dataset
	seq  int64
}

// NewStore creates an empty store. A nil clock means time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now, data: newDataset()}
}

// WithTenantSession runs fn against a snapshot of the data restricted to tenantID. The
// snapshot is discarded when fn fails or panics.
func (st *Store) WithTenantSession(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, s *persistence.Session) error) error {
	if tenantID == uuid.Nil {
		return util.NewValidationError("no tenant bound to request", map[string]any{"reason": "MISSING_TENANT"})
	}
	return st.run(ctx, persistence.DetachedSession(tenantID, false), fn)
}

// WithAdminSession runs fn with every tenant's rows visible.
func (st *Store) WithAdminSession(ctx context.Context, fn func(ctx context.Context, s *persistence.Session) error) error {
	return st.run(ctx, persistence.DetachedSession(uuid.Nil, true), fn)
}

func (st *Store) run(ctx context.Context, sess *persistence.Session, fn func(context.Context, *persistence.Session) error) error {
	if err := ctx.Err(); err != nil {
		return util.NewInfrastructure("acquire connection", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	snapshot := st.data.clone()
	committed := false
	defer func() {
		sess.Close()
		if !committed {
			st.data = snapshot
		}
	}()

	if err := fn(ctx, sess); err != nil {
		return err
	}
	committed = true
	return nil
}

func (st *Store) stamp() (uuid.UUID, time.Time) {
	return uuid.New(), st.now().UTC()
}

type dataset struct {
	contacts       *table[domain.Contact]
	addresses      *table[domain.Address]
	services       *table[domain.CatalogItem]
	tickets        *table[domain.Ticket]
	lineItems      *table[domain.LineItem]
	invoices       *table[domain.Invoice]
	notes          *table[domain.Note]
	attributes     *table[domain.Attribute]
	messages       *table[domain.ScheduledMessage]
	leads          *table[domain.Lead]
	authorizations *table[domain.ModelAuthorization]
	accounts       *table[domain.Account]
	audit          []domain.AuditEntry
}

func newDataset() *dataset {
	return &dataset{
		contacts: newTable("contact",
			func(c *domain.Contact) (uuid.UUID, uuid.UUID) { return c.ID, c.TenantID },
			func(c *domain.Contact) **time.Time { return &c.DeletedAt }),
		addresses: newTable("address",
			func(a *domain.Address) (uuid.UUID, uuid.UUID) { return a.ID, a.TenantID }, nil),
		services: newTable("service",
			func(i *domain.CatalogItem) (uuid.UUID, uuid.UUID) { return i.ID, i.TenantID },
			func(i *domain.CatalogItem) **time.Time { return &i.DeletedAt }),
		tickets: newTable("ticket",
			func(t *domain.Ticket) (uuid.UUID, uuid.UUID) { return t.ID, t.TenantID },
			func(t *domain.Ticket) **time.Time { return &t.DeletedAt }),
		lineItems: newTable("line item",
			func(li *domain.LineItem) (uuid.UUID, uuid.UUID) { return li.ID, li.TenantID },
			func(li *domain.LineItem) **time.Time { return &li.DeletedAt }),
		invoices: newTable("invoice",
			func(i *domain.Invoice) (uuid.UUID, uuid.UUID) { return i.ID, i.TenantID },
			func(i *domain.Invoice) **time.Time { return &i.DeletedAt }),
		notes: newTable("note",
			func(n *domain.Note) (uuid.UUID, uuid.UUID) { return n.ID, n.TenantID },
			func(n *domain.Note) **time.Time { return &n.DeletedAt }),
		attributes: newTable("attribute",
			func(a *domain.Attribute) (uuid.UUID, uuid.UUID) { return a.ID, a.TenantID }, nil),
		messages: newTable("scheduled message",
			func(m *domain.ScheduledMessage) (uuid.UUID, uuid.UUID) { return m.ID, m.TenantID }, nil),
		leads: newTable("lead",
			func(l *domain.Lead) (uuid.UUID, uuid.UUID) { return l.ID, l.TenantID },
			func(l *domain.Lead) **time.Time { return &l.DeletedAt }),
		authorizations: newTable("model authorization",
			func(a *domain.ModelAuthorization) (uuid.UUID, uuid.UUID) { return a.ID, a.TenantID }, nil),
		accounts: newTable("account",
			func(a *domain.Account) (uuid.UUID, uuid.UUID) { return a.ID, a.TenantID }, nil),
	}
}

// clone copies every table. Rows are values and are replaced, never mutated in place,
// so a shallow copy of each map is a full snapshot.
func (d *dataset) clone() *dataset {
	return &dataset{
		contacts:       d.contacts.clone(),
		addresses:      d.addresses.clone(),
		services:       d.services.clone(),
		tickets:        d.tickets.clone(),
		lineItems:      d.lineItems.clone(),
		invoices:       d.invoices.clone(),
		notes:          d.notes.clone(),
		attributes:     d.attributes.clone(),
		messages:       d.messages.clone(),
		leads:          d.leads.clone(),
		authorizations: d.authorizations.clone(),
		accounts:       d.accounts.clone(),
		audit:          slices.Clone(d.audit),
	}
}

// table holds one entity type keyed by id.
type table[T any] struct {
	resource string
	rows     map[uuid.UUID]T
	order    map[uuid.UUID]int64
	keys     func(*T) (id, tenantID uuid.UUID)
	// deleted is nil for hard-deleted entities.
	deleted func(*T) **time.Time
}

func newTable[T any](resource string, keys func(*T) (uuid.UUID, uuid.UUID), deleted func(*T) **time.Time) *table[T] {
	return &table[T]{
		resource: resource,
		rows:     map[uuid.UUID]T{},
		order:    map[uuid.UUID]int64{},
		keys:     keys,
		deleted:  deleted,
	}
}

func (t *table[T]) clone() *table[T] {
	c := *t
	c.rows = maps.Clone(t.rows)
	c.order = maps.Clone(t.order)
	return &c
}

func visible(s *persistence.Session, tenantID uuid.UUID) bool {
	return s.IsAdmin() || s.TenantID() == tenantID
}

func (t *table[T]) live(s *persistence.Session, row *T) bool {
	_, tenantID := t.keys(row)
	if !visible(s, tenantID) {
		return false
	}
	return t.deleted == nil || *t.deleted(row) == nil
}

func (t *table[T]) insert(st *Store, row T) {
	id, _ := t.keys(&row)
	st.seq++
	t.rows[id] = row
	t.order[id] = st.seq
}

func (t *table[T]) get(s *persistence.Session, id uuid.UUID) (*T, error) {
	row, ok := t.rows[id]
	if !ok || !t.live(s, &row) {
		return nil, util.NewNotFound(t.resource, map[string]any{"id": id.String()})
	}
	return &row, nil
}

func (t *table[T]) replace(s *persistence.Session, row T) error {
	id, _ := t.keys(&row)
	if _, err := t.get(s, id); err != nil {
		return err
	}
	t.rows[id] = row
	return nil
}

func (t *table[T]) softDelete(s *persistence.Session, id uuid.UUID, at time.Time) error {
	row, err := t.get(s, id)
	if err != nil {
		return err
	}
	ts := at
	*t.deleted(row) = &ts
	t.rows[id] = *row
	return nil
}

func (t *table[T]) remove(s *persistence.Session, id uuid.UUID) error {
	if _, err := t.get(s, id); err != nil {
		return err
	}
	delete(t.rows, id)
	delete(t.order, id)
	return nil
}

// list returns live rows matching keep, in insertion order unless less is given.
func (t *table[T]) list(s *persistence.Session, keep func(*T) bool, less func(a, b *T) int, limit, offset int) []T {
	out := make([]T, 0)
	for _, row := range t.rows {
		if !t.live(s, &row) || (keep != nil && !keep(&row)) {
			continue
		}
		out = append(out, row)
	}
	slices.SortStableFunc(out, func(a, b T) int {
		if less != nil {
			if c := less(&a, &b); c != 0 {
				return c
			}
		}
		ia, _ := t.keys(&a)
		ib, _ := t.keys(&b)
		return int(t.order[ia] - t.order[ib])
	})
	if offset > 0 {
		if offset >= len(out) {
			return []T{}
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
