package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/field-service/internal/statemachine"
	"github.com/spec-kit/field-service/pkg/util"
)

// assertClosure checks that exactly the listed edges are accepted.
func assertClosure[S ~string](t *testing.T, m *statemachine.Machine[S], allowed map[S][]S) {
	t.Helper()
	want := map[[2]S]bool{}
	for from, tos := range allowed {
		for _, to := range tos {
			want[[2]S{from, to}] = true
		}
	}
	for _, from := range m.States() {
		for _, to := range m.States() {
			err := m.Validate(from, to)
			if want[[2]S{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			assert.True(t, errors.Is(err, util.ErrInvalidTransition), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestTicketLifecycle_Closure(t *testing.T) {
	assertClosure(t, TicketLifecycle, map[TicketStatus][]TicketStatus{
		TicketStatusScheduled:  {TicketStatusInProgress, TicketStatusCancelled},
		TicketStatusInProgress: {TicketStatusCompleted, TicketStatusCancelled},
	})
	assert.Error(t, TicketLifecycle.Validate(TicketStatusScheduled, TicketStatusCompleted))
}

func TestInvoiceLifecycle_Closure(t *testing.T) {
	assertClosure(t, InvoiceLifecycle, map[InvoiceStatus][]InvoiceStatus{
		InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusVoid},
		InvoiceStatusSent:    {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
		InvoiceStatusPartial: {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
	})
}

func TestMessageLifecycle_Closure(t *testing.T) {
	assertClosure(t, MessageLifecycle, map[MessageStatus][]MessageStatus{
		MessageStatusPending: {MessageStatusSent, MessageStatusCancelled, MessageStatusFailed},
		MessageStatusFailed:  {MessageStatusPending},
	})
}

func TestLeadLifecycle_Closure(t *testing.T) {
	assertClosure(t, LeadLifecycle, map[LeadStatus][]LeadStatus{
		LeadStatusNew:       {LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusArchived},
		LeadStatusContacted: {LeadStatusQualified, LeadStatusConverted, LeadStatusArchived},
		LeadStatusQualified: {LeadStatusConverted, LeadStatusArchived},
	})
}

func TestAuthorizationLifecycle_Closure(t *testing.T) {
	assertClosure(t, AuthorizationLifecycle, map[AuthorizationStatus][]AuthorizationStatus{
		AuthorizationPending:  {AuthorizationApproved, AuthorizationDenied, AuthorizationExpired},
		AuthorizationApproved: {AuthorizationRevoked, AuthorizationExpired},
	})
}
