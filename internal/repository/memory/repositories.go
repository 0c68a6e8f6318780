package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// Repositories bundles every in-memory repository over one store.
type Repositories struct {
	Contacts       repository.ContactRepository
	Addresses      repository.AddressRepository
	Catalog        repository.CatalogRepository
	Tickets        repository.TicketRepository
	LineItems      repository.LineItemRepository
	Invoices       repository.InvoiceRepository
	Notes          repository.NoteRepository
	Attributes     repository.AttributeRepository
	Messages       repository.MessageRepository
	Leads          repository.LeadRepository
	Authorizations repository.AuthorizationRepository
	Audit          repository.AuditRepository
	Accounts       repository.AccountRepository
}

// NewRepositories builds repositories backed by st.
func NewRepositories(st *Store) Repositories {
	return Repositories{
		Contacts:       contacts{st},
		Addresses:      addresses{st},
		Catalog:        catalog{st},
		Tickets:        tickets{st},
		LineItems:      lineItems{st},
		Invoices:       invoices{st},
		Notes:          notes{st},
		Attributes:     attributes{st},
		Messages:       messages{st},
		Leads:          leads{st},
		Authorizations: authorizations{st},
		Audit:          audit{st},
		Accounts:       accounts{st},
	}
}

func tenantOf(s *persistence.Session) (uuid.UUID, error) {
	if s.TenantID() == uuid.Nil {
		return uuid.Nil, util.NewValidationError("write requires a tenant session", map[string]any{"reason": "MISSING_TENANT"})
	}
	return s.TenantID(), nil
}

func contains(field *string, term string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), term)
}

func matches(term string, fields ...*string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if contains(f, term) {
			return true
		}
	}
	return false
}

func offset(n int) int {
	return max(n, 0)
}

type contacts struct{ st *Store }

func (r contacts) Create(_ context.Context, s *persistence.Session, c *domain.Contact) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt = r.st.stamp()
	c.TenantID, c.UpdatedAt, c.DeletedAt = tenantID, c.CreatedAt, nil
	r.st.data.contacts.insert(r.st, *c)
	return nil
}

func (r contacts) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Contact, error) {
	return r.st.data.contacts.get(s, id)
}

func (r contacts) Update(_ context.Context, s *persistence.Session, c *domain.Contact) error {
	return r.st.data.contacts.replace(s, *c)
}

func (r contacts) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.contacts.softDelete(s, id, at)
}

func (r contacts) List(_ context.Context, s *persistence.Session, f repository.ContactFilter) ([]domain.Contact, error) {
	return r.st.data.contacts.list(s, func(c *domain.Contact) bool {
		return matches(f.Search, c.FirstName, c.LastName, c.BusinessName, c.Email, c.Phone)
	}, nil, repository.ClampLimit(f.Limit), offset(f.Offset)), nil
}

type addresses struct{ st *Store }

func (r addresses) Create(_ context.Context, s *persistence.Session, a *domain.Address) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	a.ID, a.CreatedAt = r.st.stamp()
	a.TenantID, a.UpdatedAt = tenantID, a.CreatedAt
	r.st.data.addresses.insert(r.st, *a)
	return nil
}

func (r addresses) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Address, error) {
	return r.st.data.addresses.get(s, id)
}

func (r addresses) Update(_ context.Context, s *persistence.Session, a *domain.Address) error {
	return r.st.data.addresses.replace(s, *a)
}

func (r addresses) Delete(_ context.Context, s *persistence.Session, id uuid.UUID) error {
	return r.st.data.addresses.remove(s, id)
}

func (r addresses) ListByContact(_ context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Address, error) {
	return r.st.data.addresses.list(s, func(a *domain.Address) bool { return a.ContactID == contactID },
		func(a, b *domain.Address) int {
			if a.IsPrimary == b.IsPrimary {
				return 0
			}
			if a.IsPrimary {
				return -1
			}
			return 1
		}, 0, 0), nil
}

func (r addresses) ClearPrimary(_ context.Context, s *persistence.Session, contactID, keep uuid.UUID) error {
	t := r.st.data.addresses
	for _, a := range t.list(s, func(a *domain.Address) bool {
		return a.ContactID == contactID && a.ID != keep && a.IsPrimary
	}, nil, 0, 0) {
		a.IsPrimary = false
		t.rows[a.ID] = a
	}
	return nil
}

type catalog struct{ st *Store }

func (r catalog) Create(_ context.Context, s *persistence.Session, item *domain.CatalogItem) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	item.ID, item.CreatedAt = r.st.stamp()
	item.TenantID, item.UpdatedAt, item.DeletedAt = tenantID, item.CreatedAt, nil
	r.st.data.services.insert(r.st, *item)
	return nil
}

func (r catalog) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.CatalogItem, error) {
	return r.st.data.services.get(s, id)
}

func (r catalog) Update(_ context.Context, s *persistence.Session, item *domain.CatalogItem) error {
	return r.st.data.services.replace(s, *item)
}

func (r catalog) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.services.softDelete(s, id, at)
}

func (r catalog) List(_ context.Context, s *persistence.Session, f repository.CatalogFilter) ([]domain.CatalogItem, error) {
	return r.st.data.services.list(s, func(i *domain.CatalogItem) bool {
		if f.ActiveOnly && !i.IsActive {
			return false
		}
		return matches(f.Search, &i.Name, i.Description)
	}, func(a, b *domain.CatalogItem) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	}, repository.ClampLimit(f.Limit), f.Offset), nil
}

type tickets struct{ st *Store }

func (r tickets) Create(_ context.Context, s *persistence.Session, t *domain.Ticket) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	t.ID, t.CreatedAt = r.st.stamp()
	t.TenantID, t.UpdatedAt, t.DeletedAt = tenantID, t.CreatedAt, nil
	r.st.data.tickets.insert(r.st, *t)
	return nil
}

func (r tickets) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Ticket, error) {
	return r.st.data.tickets.get(s, id)
}

func (r tickets) Update(_ context.Context, s *persistence.Session, t *domain.Ticket) error {
	return r.st.data.tickets.replace(s, *t)
}

func (r tickets) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.tickets.softDelete(s, id, at)
}

func (r tickets) CountByAddress(_ context.Context, s *persistence.Session, addressID uuid.UUID) (int64, error) {
	var n int64
	for _, t := range r.st.data.tickets.rows {
		if visible(s, t.TenantID) && t.AddressID == addressID {
			n++
		}
	}
	return n, nil
}

func (r tickets) List(_ context.Context, s *persistence.Session, f repository.TicketFilter) ([]domain.Ticket, error) {
	return r.st.data.tickets.list(s, func(t *domain.Ticket) bool {
		switch {
		case f.ContactID != nil && t.ContactID != *f.ContactID:
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status):
			return false
		case f.ScheduledFrom != nil && t.ScheduledAt.Before(*f.ScheduledFrom):
			return false
		case f.ScheduledTo != nil && !t.ScheduledAt.Before(*f.ScheduledTo):
			return false
		}
		return matches(f.Search, t.Notes)
	}, func(a, b *domain.Ticket) int {
		return b.ScheduledAt.Compare(a.ScheduledAt)
	}, repository.ClampLimit(f.Limit), offset(f.Offset)), nil
}

type lineItems struct{ st *Store }

func (r lineItems) Create(_ context.Context, s *persistence.Session, li *domain.LineItem) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	li.ID, li.CreatedAt = r.st.stamp()
	li.TenantID, li.UpdatedAt, li.DeletedAt = tenantID, li.CreatedAt, nil
	r.st.data.lineItems.insert(r.st, *li)
	return nil
}

func (r lineItems) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.LineItem, error) {
	return r.st.data.lineItems.get(s, id)
}

func (r lineItems) Update(_ context.Context, s *persistence.Session, li *domain.LineItem) error {
	return r.st.data.lineItems.replace(s, *li)
}

func (r lineItems) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.lineItems.softDelete(s, id, at)
}

func (r lineItems) ListByTicket(_ context.Context, s *persistence.Session, ticketID uuid.UUID) ([]domain.LineItem, error) {
	return r.st.data.lineItems.list(s, func(li *domain.LineItem) bool { return li.TicketID == ticketID }, nil, 0, 0), nil
}

type invoices struct{ st *Store }

func (r invoices) Create(_ context.Context, s *persistence.Session, inv *domain.Invoice) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	for _, existing := range r.st.data.invoices.rows {
		if existing.TenantID == tenantID && existing.InvoiceNumber == inv.InvoiceNumber {
			return util.NewConflict("record already exists", map[string]any{"constraint": "invoices_number_key"})
		}
	}
	inv.ID, inv.CreatedAt = r.st.stamp()
	inv.TenantID, inv.UpdatedAt, inv.DeletedAt = tenantID, inv.CreatedAt, nil
	r.st.data.invoices.insert(r.st, *inv)
	return nil
}

func (r invoices) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Invoice, error) {
	return r.st.data.invoices.get(s, id)
}

func (r invoices) Update(_ context.Context, s *persistence.Session, inv *domain.Invoice) error {
	return r.st.data.invoices.replace(s, *inv)
}

func (r invoices) List(_ context.Context, s *persistence.Session, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	return r.st.data.invoices.list(s, func(inv *domain.Invoice) bool {
		switch {
		case f.ContactID != nil && inv.ContactID != *f.ContactID:
			return false
		case f.TicketID != nil && (inv.TicketID == nil || *inv.TicketID != *f.TicketID):
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, inv.Status):
			return false
		}
		return matches(f.Search, &inv.InvoiceNumber, inv.Notes)
	}, func(a, b *domain.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	}, repository.ClampLimit(f.Limit), offset(f.Offset)), nil
}

func (r invoices) MaxSequence(_ context.Context, s *persistence.Session, prefix string) (int64, error) {
	var last int64
	for _, inv := range r.st.data.invoices.rows {
		if !visible(s, inv.TenantID) || !strings.HasPrefix(inv.InvoiceNumber, prefix) {
			continue
		}
		var n int64
		for _, ch := range strings.TrimPrefix(inv.InvoiceNumber, prefix) {
			if ch < '0' || ch > '9' {
				n = 0
				break
			}
			n = n*10 + int64(ch-'0')
		}
		last = max(last, n)
	}
	return last, nil
}

// LockSequence is a no-op; units of work are already serialized.
func (r invoices) LockSequence(context.Context, *persistence.Session, string) error {
	return nil
}

type notes struct{ st *Store }

func (r notes) Create(_ context.Context, s *persistence.Session, n *domain.Note) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	n.ID, n.CreatedAt = r.st.stamp()
	n.TenantID, n.UpdatedAt, n.DeletedAt, n.ProcessedAt = tenantID, n.CreatedAt, nil, nil
	r.st.data.notes.insert(r.st, *n)
	return nil
}

func (r notes) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Note, error) {
	return r.st.data.notes.get(s, id)
}

func (r notes) MarkProcessed(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	n, err := r.st.data.notes.get(s, id)
	if err != nil {
		return err
	}
	ts := at
	n.ProcessedAt, n.UpdatedAt = &ts, at
	return r.st.data.notes.replace(s, *n)
}

func (r notes) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.notes.softDelete(s, id, at)
}

func (r notes) List(_ context.Context, s *persistence.Session, f repository.NoteFilter) ([]domain.Note, error) {
	return r.st.data.notes.list(s, func(n *domain.Note) bool {
		switch {
		case f.ContactID != nil && (n.ContactID == nil || *n.ContactID != *f.ContactID):
			return false
		case f.TicketID != nil && (n.TicketID == nil || *n.TicketID != *f.TicketID):
			return false
		case f.UnprocessedOnly && n.ProcessedAt != nil:
			return false
		}
		return true
	}, func(a, b *domain.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	}, repository.ClampLimit(f.Limit), 0), nil
}

type attributes struct{ st *Store }

func (r attributes) Create(_ context.Context, s *persistence.Session, a *domain.Attribute) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	for _, existing := range r.st.data.attributes.rows {
		if existing.TenantID == tenantID && existing.ContactID == a.ContactID && existing.Key == a.Key {
			return util.NewConflict("record already exists", map[string]any{"constraint": "attributes_contact_key"})
		}
	}
	a.ID, a.CreatedAt = r.st.stamp()
	a.TenantID, a.UpdatedAt = tenantID, a.CreatedAt
	r.st.data.attributes.insert(r.st, *a)
	return nil
}

func (r attributes) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Attribute, error) {
	return r.st.data.attributes.get(s, id)
}

func (r attributes) FindByKey(_ context.Context, s *persistence.Session, contactID uuid.UUID, key string) (*domain.Attribute, error) {
	rows := r.st.data.attributes.list(s, func(a *domain.Attribute) bool {
		return a.ContactID == contactID && a.Key == key
	}, nil, 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r attributes) Update(_ context.Context, s *persistence.Session, a *domain.Attribute) error {
	return r.st.data.attributes.replace(s, *a)
}

func (r attributes) Delete(_ context.Context, s *persistence.Session, id uuid.UUID) error {
	return r.st.data.attributes.remove(s, id)
}

func (r attributes) ListByContact(_ context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Attribute, error) {
	return r.st.data.attributes.list(s, func(a *domain.Attribute) bool { return a.ContactID == contactID },
		func(a, b *domain.Attribute) int { return cmp.Compare(a.Key, b.Key) }, 0, 0), nil
}

type messages struct{ st *Store }

func (r messages) Create(_ context.Context, s *persistence.Session, m *domain.ScheduledMessage) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt = r.st.stamp()
	m.TenantID, m.UpdatedAt = tenantID, m.CreatedAt
	r.st.data.messages.insert(r.st, *m)
	return nil
}

func (r messages) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.ScheduledMessage, error) {
	return r.st.data.messages.get(s, id)
}

func (r messages) Update(_ context.Context, s *persistence.Session, m *domain.ScheduledMessage) error {
	return r.st.data.messages.replace(s, *m)
}

func (r messages) List(_ context.Context, s *persistence.Session, f repository.MessageFilter) ([]domain.ScheduledMessage, error) {
	return r.st.data.messages.list(s, func(m *domain.ScheduledMessage) bool {
		switch {
		case f.ContactID != nil && m.ContactID != *f.ContactID:
			return false
		case f.TicketID != nil && (m.TicketID == nil || *m.TicketID != *f.TicketID):
			return false
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status):
			return false
		case f.DueBefore != nil && m.ScheduledFor.After(*f.DueBefore):
			return false
		}
		return matches(f.Search, m.Subject, m.Body, m.TemplateName)
	}, func(a, b *domain.ScheduledMessage) int {
		return a.ScheduledFor.Compare(b.ScheduledFor)
	}, repository.ClampLimit(f.Limit), f.Offset), nil
}

type leads struct{ st *Store }

func (r leads) Create(_ context.Context, s *persistence.Session, l *domain.Lead) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	l.ID, l.CreatedAt = r.st.stamp()
	l.TenantID, l.UpdatedAt, l.DeletedAt = tenantID, l.CreatedAt, nil
	r.st.data.leads.insert(r.st, *l)
	return nil
}

func (r leads) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.Lead, error) {
	return r.st.data.leads.get(s, id)
}

func (r leads) Update(_ context.Context, s *persistence.Session, l *domain.Lead) error {
	return r.st.data.leads.replace(s, *l)
}

func (r leads) SoftDelete(_ context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	return r.st.data.leads.softDelete(s, id, at)
}

func (r leads) List(_ context.Context, s *persistence.Session, f repository.LeadFilter) ([]domain.Lead, error) {
	return r.st.data.leads.list(s, func(l *domain.Lead) bool {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, l.Status) {
			return false
		}
		return matches(f.Search, l.Name, l.Email, l.Phone, &l.RawNotes)
	}, func(a, b *domain.Lead) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	}, repository.ClampLimit(f.Limit), offset(f.Offset)), nil
}

type authorizations struct{ st *Store }

func (r authorizations) Create(_ context.Context, s *persistence.Session, a *domain.ModelAuthorization) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	a.ID, a.CreatedAt = r.st.stamp()
	a.TenantID, a.UpdatedAt = tenantID, a.CreatedAt
	r.st.data.authorizations.insert(r.st, *a)
	return nil
}

func (r authorizations) Get(_ context.Context, s *persistence.Session, id uuid.UUID) (*domain.ModelAuthorization, error) {
	return r.st.data.authorizations.get(s, id)
}

func (r authorizations) Update(_ context.Context, s *persistence.Session, a *domain.ModelAuthorization) error {
	return r.st.data.authorizations.replace(s, *a)
}

func (r authorizations) ListByPurpose(_ context.Context, s *persistence.Session, purpose string) ([]domain.ModelAuthorization, error) {
	rows := r.st.data.authorizations.list(s, func(a *domain.ModelAuthorization) bool { return a.Purpose == purpose }, nil, 0, 0)
	slices.Reverse(rows)
	return rows, nil
}

type audit struct{ st *Store }

func (r audit) Append(_ context.Context, _ *persistence.Session, entry *domain.AuditEntry) error {
	entry.ID, entry.CreatedAt = r.st.stamp()
	r.st.data.audit = append(r.st.data.audit, *entry)
	return nil
}

func (r audit) ListForEntity(_ context.Context, _ *persistence.Session, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]domain.AuditEntry, error) {
	return r.newestFirst(0, func(e *domain.AuditEntry) bool {
		return e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID
	}), nil
}

func (r audit) ListForActor(_ context.Context, _ *persistence.Session, tenantID, actorID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	return r.newestFirst(repository.ClampLimit(limit), func(e *domain.AuditEntry) bool {
		return e.TenantID == tenantID && e.ActorID != nil && *e.ActorID == actorID
	}), nil
}

func (r audit) newestFirst(limit int, keep func(*domain.AuditEntry) bool) []domain.AuditEntry {
	out := make([]domain.AuditEntry, 0)
	entries := r.st.data.audit
	for i := len(entries) - 1; i >= 0; i-- {
		if keep(&entries[i]) {
			out = append(out, entries[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type accounts struct{ st *Store }

func (r accounts) Create(_ context.Context, s *persistence.Session, a *domain.Account) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	a.ID, a.CreatedAt = r.st.stamp()
	a.TenantID, a.UpdatedAt, a.Email = tenantID, a.CreatedAt, strings.ToLower(a.Email)
	r.st.data.accounts.insert(r.st, *a)
	return nil
}

func (r accounts) FindByEmail(_ context.Context, s *persistence.Session, email string) (*domain.Account, error) {
	rows := r.st.data.accounts.list(s, func(a *domain.Account) bool {
		return strings.EqualFold(a.Email, email)
	}, nil, 1, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
