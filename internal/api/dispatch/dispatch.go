// Package dispatch routes the generic read and write requests onto the entity services.
package dispatch

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/pkg/util"
)

// Services is the set of entity services reachable through dispatch.
type Services struct {
	Contacts       *service.ContactService
	Addresses      *service.AddressService
	Catalog        *service.CatalogService
	Tickets        *service.TicketService
	LineItems      *service.LineItemService
	Invoices       *service.InvoiceService
	Notes          *service.NoteService
	Attributes     *service.AttributeService
	Messages       *service.MessageService
	Leads          *service.LeadService
	Authorizations *service.AuthorizationService
	Audit          *audit.Trail
}

type idPayload struct {
	ID uuid.UUID `json:"id"`
}

type reasonPayload struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// decode unmarshals data into a fresh T. Empty data decodes as an empty object.
func decode[T any](data json.RawMessage) (T, error) {
	var out T
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, util.NewValidationError("invalid payload", map[string]any{"error": err.Error()})
	}
	return out, nil
}

// decodeID reads the "id" field and rejects a missing one.
func decodeID(data json.RawMessage) (uuid.UUID, error) {
	p, err := decode[idPayload](data)
	if err != nil {
		return uuid.Nil, err
	}
	if p.ID == uuid.Nil {
		return uuid.Nil, util.NewValidationError("id is required", nil)
	}
	return p.ID, nil
}
