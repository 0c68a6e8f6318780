package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

func TestInvoices_FromTicketSumsLineItems(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	for _, cents := range []int64{5000, 2599} {
		_, err := h.lineItems.Add(ctx, domain.LineItemCreate{TicketID: ticket.ID, TotalPriceCents: ptrTo(cents)})
		require.NoError(t, err)
	}

	inv, err := h.invoices.CreateFromTicket(ctx, domain.InvoiceFromTicket{TicketID: ticket.ID, TaxRateBps: 825})
	require.NoError(t, err)

	assert.Equal(t, int64(7599), inv.SubtotalCents)
	assert.Equal(t, int64(626), inv.TaxAmountCents)
	assert.Equal(t, int64(8225), inv.TotalAmountCents)
	assert.Equal(t, "INV-20260314-0001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)

}

func TestInvoices_OneLiveInvoicePerTicket(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	_, err := h.lineItems.Add(ctx, domain.LineItemCreate{TicketID: ticket.ID, TotalPriceCents: ptrTo(int64(5000))})
	require.NoError(t, err)

	first, err := h.invoices.CreateFromTicket(ctx, domain.InvoiceFromTicket{TicketID: ticket.ID})
	require.NoError(t, err)

	_, err = h.invoices.CreateFromTicket(ctx, domain.InvoiceFromTicket{TicketID: ticket.ID})
	assert.True(t, errors.Is(err, util.ErrConflict))

	list, err := h.invoices.List(ctx, repository.InvoiceFilter{TicketID: &ticket.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.invoices.Void(ctx, first.ID)
	require.NoError(t, err)
	reissued, err := h.invoices.CreateFromTicket(ctx, domain.InvoiceFromTicket{TicketID: ticket.ID})
	require.NoError(t, err)
	assert.Equal(t, "INV-20260314-0002", reissued.InvoiceNumber)
}

func TestInvoices_NumbersArePerTenant(t *testing.T) {
	h := newHarness(t)
	ctxA, ctxB := tenantCtx(), tenantCtx()

	a, err := h.invoices.CreateStandalone(ctxA, domain.StandaloneInvoice{ContactID: h.contact(ctxA, "Ann", nil).ID, SubtotalCents: 100})
	require.NoError(t, err)
	b, err := h.invoices.CreateStandalone(ctxB, domain.StandaloneInvoice{ContactID: h.contact(ctxB, "Ben", nil).ID, SubtotalCents: 100})
	require.NoError(t, err)

	assert.Equal(t, a.InvoiceNumber, b.InvoiceNumber)
}

func TestInvoices_TicketWithoutItemsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)

	_, err := h.invoices.CreateFromTicket(ctx, domain.InvoiceFromTicket{TicketID: ticket.ID})

	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestInvoices_PaymentLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	inv, err := h.invoices.CreateStandalone(ctx, domain.StandaloneInvoice{ContactID: h.contact(ctx, "Jane", nil).ID, SubtotalCents: 10000})
	require.NoError(t, err)

	_, err = h.invoices.RecordPayment(ctx, domain.PaymentInput{InvoiceID: inv.ID, AmountCents: 100})
	assert.True(t, errors.Is(err, util.ErrInvalidTransition), "draft invoices take no payments")

	_, err = h.invoices.Send(ctx, inv.ID)
	require.NoError(t, err)

	inv, err = h.invoices.RecordPayment(ctx, domain.PaymentInput{InvoiceID: inv.ID, AmountCents: 4000})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, inv.Status)

	_, err = h.invoices.RecordPayment(ctx, domain.PaymentInput{InvoiceID: inv.ID, AmountCents: 7000})
	assert.True(t, errors.Is(err, util.ErrValidation))

	inv, err = h.invoices.RecordPayment(ctx, domain.PaymentInput{InvoiceID: inv.ID, AmountCents: 6000})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)
	assert.Zero(t, inv.BalanceCents())

	_, err = h.invoices.Void(ctx, inv.ID)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))

	assert.Equal(t, []events.Kind{
		events.KindContactCreated, events.KindInvoiceSent, events.KindInvoicePaid, events.KindInvoicePaid,
	}, h.published.kinds())
}
