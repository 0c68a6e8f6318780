package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/repository/memory"
	"github.com/spec-kit/field-service/internal/tenant"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind())
	}
	return out
}

type fakeExtractor struct {
	out   map[string]any
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string) (map[string]any, error) {
	f.calls++
	return f.out, f.err
}

type harness struct {
	t         *testing.T
	clock     *testClock
	store     *memory.Store
	repos     memory.Repositories
	trail     *audit.Trail
	published *recorder
	extractor *fakeExtractor
	deps      Dependencies

	contacts  *ContactService
	addresses *AddressService
	catalog   *CatalogService
	tickets   *TicketService
	lineItems *LineItemService
	invoices  *InvoiceService
	notes     *NoteService
	attrs     *AttributeService
	messages  *MessageService
	leads     *LeadService
	authz     *AuthorizationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	st := memory.NewStore(clock.Now)
	repos := memory.NewRepositories(st)
	h := &harness{
		t:         t,
		clock:     clock,
		store:     st,
		repos:     repos,
		trail:     audit.NewTrail(repos.Audit, st),
		published: &recorder{},
		extractor: &fakeExtractor{out: map[string]any{}},
	}
	h.deps = Dependencies{
		Sessions:       st,
		Admin:          st,
		Audit:          h.trail,
		Events:         h.published,
		Now:            clock.Now,
		Extractor:      h.extractor,
		Contacts:       repos.Contacts,
		Addresses:      repos.Addresses,
		Catalog:        repos.Catalog,
		Tickets:        repos.Tickets,
		LineItems:      repos.LineItems,
		Invoices:       repos.Invoices,
		Numberer:       repository.NewSQLInvoiceNumberer(repos.Invoices),
		Notes:          repos.Notes,
		Attributes:     repos.Attributes,
		Messages:       repos.Messages,
		Leads:          repos.Leads,
		Authorizations: repos.Authorizations,
		Accounts:       repos.Accounts,
	}
	h.contacts = NewContactService(h.deps)
	h.addresses = NewAddressService(h.deps)
	h.catalog = NewCatalogService(h.deps)
	h.tickets = NewTicketService(h.deps)
	h.lineItems = NewLineItemService(h.deps)
	h.invoices = NewInvoiceService(h.deps)
	h.notes = NewNoteService(h.deps)
	h.attrs = NewAttributeService(h.deps)
	h.messages = NewMessageService(h.deps)
	h.leads = NewLeadService(h.deps)
	h.authz = NewAuthorizationService(h.deps)
	return h
}

func tenantCtx() context.Context {
	return tenant.WithIdentity(context.Background(), tenant.Identity{TenantID: uuid.New(), ActorID: uuid.New()})
}

func strPtr(s string) *string { return &s }

func (h *harness) contact(ctx context.Context, first string, email *string) *domain.Contact {
	h.t.Helper()
	c, err := h.contacts.Create(ctx, domain.ContactCreate{FirstName: strPtr(first), Email: email})
	require.NoError(h.t, err)
	return c
}

func (h *harness) openTicket(ctx context.Context, contactID uuid.UUID) *domain.Ticket {
	h.t.Helper()
	addr, err := h.addresses.Create(ctx, domain.AddressCreate{
		ContactID: contactID, Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", IsPrimary: true,
	})
	require.NoError(h.t, err)
	ticket, err := h.tickets.Create(ctx, domain.TicketCreate{
		ContactID: contactID, AddressID: addr.ID, ScheduledAt: h.clock.Now().Add(time.Hour),
	})
	require.NoError(h.t, err)
	return ticket
}

func (h *harness) history(ctx context.Context, entityType string, id uuid.UUID) []domain.AuditEntry {
	h.t.Helper()
	identity, _ := tenant.FromContext(ctx)
	entries, err := h.trail.History(ctx, identity.TenantID, entityType, id)
	require.NoError(h.t, err)
	return entries
}

func (h *harness) auditCount(ctx context.Context) int {
	h.t.Helper()
	identity, _ := tenant.FromContext(ctx)
	n := 0
	err := h.store.WithAdminSession(ctx, func(ctx context.Context, s *persistence.Session) error {
		entries, err := h.repos.Audit.ListForActor(ctx, s, identity.TenantID, identity.ActorID, repository.MaxLimit)
		n = len(entries)
		return err
	})
	require.NoError(h.t, err)
	return n
}

func repositoryContactSearch(term string) repository.ContactFilter {
	return repository.ContactFilter{Search: term}
}
