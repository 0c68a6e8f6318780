package main

import (
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/repository/memory"
	"github.com/spec-kit/field-service/internal/service"
)

// wireStorage fills the session sources and repositories of deps. Postgres is used when a
// pool is open, the in-memory store otherwise. It returns the audit repository.
func wireStorage(deps *service.Dependencies, pg *persistence.Postgres, redis *persistence.Redis, logger *zap.Logger) repository.AuditRepository {
	var auditRepo repository.AuditRepository
	if pg.Enabled() {
		store := persistence.NewStore(pg, logger)
		deps.Sessions, deps.Admin = store, store
		deps.Contacts = repository.NewContactRepository()
		deps.Addresses = repository.NewAddressRepository()
		deps.Catalog = repository.NewCatalogRepository()
		deps.Tickets = repository.NewTicketRepository()
		deps.LineItems = repository.NewLineItemRepository()
		deps.Invoices = repository.NewInvoiceRepository()
		deps.Notes = repository.NewNoteRepository()
		deps.Attributes = repository.NewAttributeRepository()
		deps.Messages = repository.NewMessageRepository()
		deps.Leads = repository.NewLeadRepository()
		deps.Authorizations = repository.NewAuthorizationRepository()
		deps.Accounts = repository.NewAccountRepository()
		auditRepo = repository.NewAuditRepository()
	} else {
		logger.Warn("running on the in-memory store; data is lost on restart")
		st := memory.NewStore(deps.Now)
		repos := memory.NewRepositories(st)
		deps.Sessions, deps.Admin = st, st
		deps.Contacts = repos.Contacts
		deps.Addresses = repos.Addresses
		deps.Catalog = repos.Catalog
		deps.Tickets = repos.Tickets
		deps.LineItems = repos.LineItems
		deps.Invoices = repos.Invoices
		deps.Notes = repos.Notes
		deps.Attributes = repos.Attributes
		deps.Messages = repos.Messages
		deps.Leads = repos.Leads
		deps.Authorizations = repos.Authorizations
		deps.Accounts = repos.Accounts
		auditRepo = repos.Audit
	}

	if redis.Enabled() {
		deps.Numberer = repository.NewRedisInvoiceNumberer(redis.Client, deps.Invoices)
	} else {
		deps.Numberer = repository.NewSQLInvoiceNumberer(deps.Invoices)
	}
	return auditRepo
}
