// Package service holds the entity services. Every mutation runs in one tenant session:
// validate, mutate, write the audit entry, commit, then publish.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/tenant"
)

// Dependencies bundles what the services need. Now defaults to time.Now and Extractor
// to NoopExtractor.
type Dependencies struct {
	Sessions  persistence.Sessions
	Admin     persistence.AdminSessions
	Audit     *audit.Trail
	Events    events.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
	Extractor Extractor

	Contacts       repository.ContactRepository
	Addresses      repository.AddressRepository
	Catalog        repository.CatalogRepository
	Tickets        repository.TicketRepository
	LineItems      repository.LineItemRepository
	Invoices       repository.InvoiceRepository
	Numberer       repository.InvoiceNumberer
	Notes          repository.NoteRepository
	Attributes     repository.AttributeRepository
	Messages       repository.MessageRepository
	Leads          repository.LeadRepository
	Authorizations repository.AuthorizationRepository
	Accounts       repository.AccountRepository
}

type base struct {
	sessions persistence.Sessions
	audit    *audit.Trail
	events   events.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

func newBase(deps Dependencies) base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		sessions: deps.Sessions,
		audit:    deps.Audit,
		events:   deps.Events,
		logger:   logger,
		now:      now,
	}
}

func (b base) clock() time.Time {
	return b.now().UTC()
}

// tx runs fn in a session bound to the tenant on ctx.
func (b base) tx(ctx context.Context, fn func(ctx context.Context, s *persistence.Session) error) error {
	id, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	return b.sessions.WithTenantSession(ctx, id.TenantID, fn)
}

func (b base) meta(ctx context.Context) events.Meta {
	id, _ := tenant.FromContext(ctx)
	return events.NewMeta(id.TenantID, id.ActorID, b.clock())
}

func (b base) publish(ctx context.Context, e events.Event) {
	if b.events == nil {
		return
	}
	b.events.Publish(ctx, e)
}

func ptrTo[T any](v T) *T {
	return &v
}

var errNoAdminSessions = errors.New("service built without admin sessions")
