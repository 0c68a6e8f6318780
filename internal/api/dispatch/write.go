package dispatch

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/pkg/util"
)

// Domain names the entity family an action targets.
type Domain string

// Action names one operation within a domain.
type Action string

const (
	DomainContact       Domain = "contact"
	DomainAddress       Domain = "address"
	DomainCatalog       Domain = "catalog"
	DomainTicket        Domain = "ticket"
	DomainLineItem      Domain = "line_item"
	DomainInvoice       Domain = "invoice"
	DomainNote          Domain = "note"
	DomainAttribute     Domain = "attribute"
	DomainMessage       Domain = "message"
	DomainLead          Domain = "lead"
	DomainAuthorization Domain = "authorization"
)

const (
	ActionCreate               Action = "create"
	ActionUpdate               Action = "update"
	ActionDelete               Action = "delete"
	ActionClockIn              Action = "clock_in"
	ActionClockOut             Action = "clock_out"
	ActionCancel               Action = "cancel"
	ActionInitiateCloseOut     Action = "initiate_close_out"
	ActionFinalizeCloseOut     Action = "finalize_close_out"
	ActionCreateFromTicket     Action = "create_from_ticket"
	ActionCreateStandalone     Action = "create_standalone"
	ActionSend                 Action = "send"
	ActionRecordPayment        Action = "record_payment"
	ActionVoid                 Action = "void"
	ActionMarkProcessed        Action = "mark_processed"
	ActionUpsert               Action = "upsert"
	ActionSchedule             Action = "schedule"
	ActionRetry                Action = "retry"
	ActionTransition           Action = "transition"
	ActionConvert              Action = "convert"
	ActionRequestAuthorization Action = "request"
	ActionDecide               Action = "decide"
)

// ActionRequest is one write: a domain, an action within it and the action's payload.
type ActionRequest struct {
	Domain Domain          `json:"domain"`
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type handler func(ctx context.Context, data json.RawMessage) (any, error)

// Writer executes actions through a fixed domain/action table.
type Writer struct {
	table map[Domain]map[Action]handler
}

// NewWriter builds the dispatch table.
func NewWriter(svc Services) *Writer {
	return &Writer{table: map[Domain]map[Action]handler{
		DomainContact: {
			ActionCreate: create(svc.Contacts.Create),
			ActionUpdate: patch(svc.Contacts.Update),
			ActionDelete: remove(svc.Contacts.Delete),
		},
		DomainAddress: {
			ActionCreate: create(svc.Addresses.Create),
			ActionUpdate: patch(svc.Addresses.Update),
			ActionDelete: remove(svc.Addresses.Delete),
		},
		DomainCatalog: {
			ActionCreate: create(svc.Catalog.Create),
			ActionUpdate: patch(svc.Catalog.Update),
			ActionDelete: remove(svc.Catalog.Delete),
		},
		DomainTicket: {
			ActionCreate:           create(svc.Tickets.Create),
			ActionUpdate:           patch(svc.Tickets.Update),
			ActionDelete:           remove(svc.Tickets.Delete),
			ActionClockIn:          byID(svc.Tickets.ClockIn),
			ActionClockOut:         byID(svc.Tickets.ClockOut),
			ActionCancel:           withReason(svc.Tickets.Cancel),
			ActionInitiateCloseOut: patch(svc.Tickets.InitiateCloseOut),
			ActionFinalizeCloseOut: patch(svc.Tickets.FinalizeCloseOut),
		},
		DomainLineItem: {
			ActionCreate: create(svc.LineItems.Add),
			ActionUpdate: patch(svc.LineItems.Update),
			ActionDelete: remove(svc.LineItems.Delete),
		},
		DomainInvoice: {
			ActionCreateFromTicket: create(svc.Invoices.CreateFromTicket),
			ActionCreateStandalone: create(svc.Invoices.CreateStandalone),
			ActionSend:             byID(svc.Invoices.Send),
			ActionRecordPayment:    create(svc.Invoices.RecordPayment),
			ActionVoid:             byID(svc.Invoices.Void),
		},
		DomainNote: {
			ActionCreate:        create(svc.Notes.Create),
			ActionDelete:        remove(svc.Notes.Delete),
			ActionMarkProcessed: remove(svc.Notes.MarkProcessed),
		},
		DomainAttribute: {
			ActionUpsert: create(svc.Attributes.Upsert),
			ActionDelete: remove(svc.Attributes.Delete),
		},
		DomainMessage: {
			ActionSchedule: create(svc.Messages.Schedule),
			ActionCancel:   withReason(svc.Messages.Cancel),
			ActionRetry:    byID(svc.Messages.Retry),
		},
		DomainLead: {
			ActionCreate:     create(svc.Leads.Create),
			ActionUpdate:     patch(svc.Leads.Update),
			ActionDelete:     remove(svc.Leads.Delete),
			ActionTransition: leadTransition(svc),
			ActionConvert:    leadConvert(svc),
		},
		DomainAuthorization: {
			ActionRequestAuthorization: create(svc.Authorizations.Request),
			ActionDecide:               create(svc.Authorizations.Decide),
		},
	}}
}

// Execute looks up the pair and runs it. Unknown pairs fail before anything runs.
func (w *Writer) Execute(ctx context.Context, req ActionRequest) (any, error) {
	actions, ok := w.table[req.Domain]
	if !ok {
		return nil, util.NewValidationError("unknown domain", map[string]any{
			"domain":  req.Domain,
			"allowed": sortedKeys(w.table),
		})
	}
	fn, ok := actions[req.Action]
	if !ok {
		return nil, util.NewValidationError("action not allowed", map[string]any{
			"domain":  req.Domain,
			"action":  req.Action,
			"allowed": sortedKeys(actions),
		})
	}
	return fn(ctx, req.Data)
}

// Actions lists the registered actions for domain.
func (w *Writer) Actions(d Domain) []Action {
	return sortedKeys(w.table[d])
}

func create[In, Out any](fn func(context.Context, In) (Out, error)) handler {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		in, err := decode[In](data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

func patch[In, Out any](fn func(context.Context, uuid.UUID, In) (Out, error)) handler {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		in, err := decode[In](data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, id, in)
	}
}

func byID[Out any](fn func(context.Context, uuid.UUID) (Out, error)) handler {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, id)
	}
}

func withReason[Out any](fn func(context.Context, uuid.UUID, string) (Out, error)) handler {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		p, err := decode[reasonPayload](data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, id, p.Reason)
	}
}

func remove(fn func(context.Context, uuid.UUID) error) handler {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		if err := fn(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "ok": true}, nil
	}
}

func leadTransition(svc Services) handler {
	type payload struct {
		Status domain.LeadStatus `json:"status"`
	}
	return patch(func(ctx context.Context, id uuid.UUID, p payload) (*domain.Lead, error) {
		return svc.Leads.Transition(ctx, id, p.Status)
	})
}

func leadConvert(svc Services) handler {
	type payload struct {
		Contact *domain.ContactCreate `json:"contact"`
	}
	type result struct {
		Lead    *domain.Lead    `json:"lead"`
		Contact *domain.Contact `json:"contact"`
	}
	return patch(func(ctx context.Context, id uuid.UUID, p payload) (*result, error) {
		lead, contact, err := svc.Leads.Convert(ctx, id, p.Contact)
		if err != nil {
			return nil, err
		}
		return &result{Lead: lead, Contact: contact}, nil
	})
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
