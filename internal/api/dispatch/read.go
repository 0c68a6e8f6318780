package dispatch

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/tenant"
	"github.com/spec-kit/field-service/pkg/util"
)

// ReadType names the collection a read targets.
type ReadType string

const (
	ReadContacts ReadType = "contacts"
	ReadTickets  ReadType = "tickets"
	ReadServices ReadType = "services"
	ReadInvoices ReadType = "invoices"
	ReadLeads    ReadType = "leads"
	ReadMessages ReadType = "messages"
	ReadAudit    ReadType = "audit"
)

// ReadRequest selects one entity by ID or a bounded list.
type ReadRequest struct {
	Type     ReadType
	ID       *uuid.UUID
	Search   string
	Filters  map[string]string
	Includes []string
	Limit    int
	Offset   int
}

// ContactView is a contact with its optional includes.
type ContactView struct {
	*domain.Contact
	Addresses  []domain.Address   `json:"addresses,omitempty"`
	Attributes []domain.Attribute `json:"attributes,omitempty"`
	Tickets    []domain.Ticket    `json:"tickets,omitempty"`
}

// TicketView is a ticket with its optional includes.
type TicketView struct {
	*domain.Ticket
	LineItems []domain.LineItem `json:"line_items,omitempty"`
	Notes     []domain.Note     `json:"notes,omitempty"`
}

type reader func(ctx context.Context, req ReadRequest) (any, error)

type readRoute struct {
	filters  []string
	includes []string
	read     reader
}

// Reader resolves read requests against the services.
type Reader struct {
	svc   Services
	types map[ReadType]readRoute
}

// NewReader builds the per-type read table.
func NewReader(svc Services) *Reader {
	r := &Reader{svc: svc}
	r.types = map[ReadType]readRoute{
		ReadContacts: {includes: []string{"addresses", "attributes", "tickets"}, read: r.contacts},
		ReadTickets: {
			filters:  []string{"contact_id", "status", "from", "to"},
			includes: []string{"line_items", "notes"},
			read:     r.tickets,
		},
		ReadServices: {filters: []string{"active"}, read: r.services},
		ReadInvoices: {filters: []string{"contact_id", "ticket_id", "status"}, read: r.invoices},
		ReadLeads:    {filters: []string{"status"}, read: r.leads},
		ReadMessages: {filters: []string{"contact_id", "ticket_id", "status"}, read: r.messages},
		ReadAudit:    {filters: []string{"entity_type", "actor_id"}, read: r.audit},
	}
	return r
}

// Read validates req against its type and returns an entity or a list.
func (r *Reader) Read(ctx context.Context, req ReadRequest) (any, error) {
	route, ok := r.types[req.Type]
	if !ok {
		return nil, util.NewValidationError("unknown type", map[string]any{"type": req.Type, "allowed": sortedKeys(r.types)})
	}
	if req.Limit < 0 || req.Limit > repository.MaxLimit {
		return nil, util.NewValidationError("limit out of range", map[string]any{"max": repository.MaxLimit})
	}
	if req.Offset < 0 {
		return nil, util.NewValidationError("offset must not be negative", nil)
	}
	req.Limit = repository.ClampLimit(req.Limit)
	for key := range req.Filters {
		if !slices.Contains(route.filters, key) {
			return nil, util.NewValidationError("unknown filter", map[string]any{"filter": key, "allowed": route.filters})
		}
	}
	for _, inc := range req.Includes {
		if !slices.Contains(route.includes, inc) {
			return nil, util.NewValidationError("unknown include", map[string]any{"include": inc, "allowed": route.includes})
		}
	}
	return route.read(ctx, req)
}

func (r *Reader) contacts(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID == nil {
		return r.svc.Contacts.List(ctx, repository.ContactFilter{Search: req.Search, Limit: req.Limit, Offset: req.Offset})
	}
	contact, err := r.svc.Contacts.Get(ctx, *req.ID)
	if err != nil {
		return nil, err
	}
	view := &ContactView{Contact: contact}
	if req.includes("addresses") {
		if view.Addresses, err = r.svc.Addresses.ListForContact(ctx, contact.ID); err != nil {
			return nil, err
		}
	}
	if req.includes("attributes") {
		if view.Attributes, err = r.svc.Attributes.ListForContact(ctx, contact.ID); err != nil {
			return nil, err
		}
	}
	if req.includes("tickets") {
		if view.Tickets, err = r.svc.Tickets.ListForContact(ctx, contact.ID, req.Limit); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (r *Reader) tickets(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID == nil {
		filter := repository.TicketFilter{Search: req.Search, Limit: req.Limit, Offset: req.Offset}
		var err error
		if filter.ContactID, err = uuidFilter(req.Filters, "contact_id"); err != nil {
			return nil, err
		}
		if filter.ScheduledFrom, err = timeFilter(req.Filters, "from"); err != nil {
			return nil, err
		}
		if filter.ScheduledTo, err = timeFilter(req.Filters, "to"); err != nil {
			return nil, err
		}
		filter.Statuses = listFilter[domain.TicketStatus](req.Filters, "status")
		return r.svc.Tickets.List(ctx, filter)
	}
	ticket, err := r.svc.Tickets.Get(ctx, *req.ID)
	if err != nil {
		return nil, err
	}
	view := &TicketView{Ticket: ticket}
	if req.includes("line_items") {
		if view.LineItems, err = r.svc.LineItems.ListForTicket(ctx, ticket.ID); err != nil {
			return nil, err
		}
	}
	if req.includes("notes") {
		if view.Notes, err = r.svc.Notes.List(ctx, repository.NoteFilter{TicketID: &ticket.ID, Limit: req.Limit}); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (r *Reader) services(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID != nil {
		return r.svc.Catalog.Get(ctx, *req.ID)
	}
	filter := repository.CatalogFilter{Search: req.Search, Limit: req.Limit, Offset: req.Offset}
	if raw, ok := req.Filters["active"]; ok {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, util.NewValidationError("invalid filter value", map[string]any{"filter": "active"})
		}
		filter.ActiveOnly = active
	}
	return r.svc.Catalog.List(ctx, filter)
}

// invoices accepts status=unpaid as shorthand for sent and partial.
func (r *Reader) invoices(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID != nil {
		return r.svc.Invoices.Get(ctx, *req.ID)
	}
	filter := repository.InvoiceFilter{Search: req.Search, Limit: req.Limit, Offset: req.Offset}
	var err error
	if filter.ContactID, err = uuidFilter(req.Filters, "contact_id"); err != nil {
		return nil, err
	}
	if filter.TicketID, err = uuidFilter(req.Filters, "ticket_id"); err != nil {
		return nil, err
	}
	if req.Filters["status"] == "unpaid" {
		filter.Statuses = []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusPartial}
	} else {
		filter.Statuses = listFilter[domain.InvoiceStatus](req.Filters, "status")
	}
	return r.svc.Invoices.List(ctx, filter)
}

func (r *Reader) leads(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID != nil {
		return r.svc.Leads.Get(ctx, *req.ID)
	}
	return r.svc.Leads.List(ctx, repository.LeadFilter{
		Statuses: listFilter[domain.LeadStatus](req.Filters, "status"),
		Search:   req.Search,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
}

func (r *Reader) messages(ctx context.Context, req ReadRequest) (any, error) {
	if req.ID != nil {
		return r.svc.Messages.Get(ctx, *req.ID)
	}
	filter := repository.MessageFilter{Search: req.Search, Limit: req.Limit, Offset: req.Offset}
	var err error
	if filter.ContactID, err = uuidFilter(req.Filters, "contact_id"); err != nil {
		return nil, err
	}
	if filter.TicketID, err = uuidFilter(req.Filters, "ticket_id"); err != nil {
		return nil, err
	}
	filter.Statuses = listFilter[domain.MessageStatus](req.Filters, "status")
	return r.svc.Messages.List(ctx, filter)
}

// audit returns an entity's history (id plus entity_type) or an actor's recent activity.
func (r *Reader) audit(ctx context.Context, req ReadRequest) (any, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	actorID, err := uuidFilter(req.Filters, "actor_id")
	if err != nil {
		return nil, err
	}
	if actorID != nil {
		return r.svc.Audit.ActorActivity(ctx, id.TenantID, *actorID, req.Limit)
	}
	entityType := req.Filters["entity_type"]
	if req.ID == nil || entityType == "" {
		return nil, util.NewValidationError("audit reads need id and entity_type, or actor_id", nil)
	}
	entries, err := r.svc.Audit.History(ctx, id.TenantID, entityType, *req.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

func (req ReadRequest) includes(name string) bool {
	return slices.Contains(req.Includes, name)
}

func uuidFilter(filters map[string]string, key string) (*uuid.UUID, error) {
	raw, ok := filters[key]
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, util.NewValidationError("invalid filter value", map[string]any{"filter": key})
	}
	return &id, nil
}

func timeFilter(filters map[string]string, key string) (*time.Time, error) {
	raw, ok := filters[key]
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, util.NewValidationError("invalid filter value", map[string]any{"filter": key, "format": "RFC3339"})
	}
	return &t, nil
}

// listFilter splits a comma separated filter value.
func listFilter[T ~string](filters map[string]string, key string) []T {
	raw := filters[key]
	if raw == "" {
		return nil
	}
	var out []T
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, T(part))
		}
	}
	return out
}
