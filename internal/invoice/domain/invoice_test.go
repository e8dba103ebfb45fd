package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSequence struct {
	mock.Mock
}

func (m *mockSequence) NextInvoiceNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

var (
	issued = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	due    = issued.AddDate(0, 0, 14)
)

func newDraft(t *testing.T, items ...LineItem) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceParams{
		ID:           1,
		Customer:     Customer{Name: "Acme GmbH", Email: "billing@acme.test"},
		Currency:     "eur",
		IssueDate:    issued,
		DueDate:      due,
		PaymentTerms: "14 days net",
		LineItems:    items,
		Now:          issued,
	})
	require.NoError(t, err)
	return inv
}

func newSent(t *testing.T, items ...LineItem) *Invoice {
	t.Helper()
	inv := newDraft(t, items...)
	seq := &mockSequence{}
	seq.On("NextInvoiceNumber", mock.Anything).Return("INV-202603-00001", nil).Once()
	require.NoError(t, inv.Finalize(context.Background(), seq, issued))
	return inv
}

func TestNewInvoice_Validation(t *testing.T) {
	base := NewInvoiceParams{ID: 1, Customer: Customer{Name: "Acme"}, Currency: "EUR", IssueDate: issued, DueDate: due}

	p := base
	p.DueDate = issued
	_, err := NewInvoice(p)
	assert.ErrorIs(t, err, ErrInvalidDueDate)

	p = base
	p.Customer.Name = ""
	_, err = NewInvoice(p)
	assert.ErrorIs(t, err, ErrInvalidCustomer)

	p = base
	p.Currency = "EURO"
	_, err = NewInvoice(p)
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	p = base
	p.PaymentMethod = "barter"
	_, err = NewInvoice(p)
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	p = base
	p.LineItems = []LineItem{item("-1", "1", "0")}
	_, err = NewInvoice(p)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	inv, err := NewInvoice(base)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.Equal(t, PaymentMethodBankTransfer, inv.PaymentMethod)
	assert.Nil(t, inv.InvoiceNumber)
}

func TestTotals_VATInclusive(t *testing.T) {
	inv := newDraft(t, item("2", "100.00", "21"))
	totals := inv.Totals()

	assert.Equal(t, "200.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "42.00", totals.TaxTotal.StringFixed(2))
	assert.Equal(t, "242.00", totals.GrandTotal.StringFixed(2))
}

func TestRecordPayment_FullPaymentMarksPaid(t *testing.T) {
	inv := newSent(t, item("2", "100.00", "21"))
	now := issued.AddDate(0, 0, 3)

	_, err := inv.RecordPayment(d("242.00"), PaymentMethodBankTransfer, "SEPA-1", now)
	require.NoError(t, err)

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.OutstandingBalance().IsZero())
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, now, *inv.PaidAt)
}

func TestRecordPayment_PartialThenOverpaymentRejected(t *testing.T) {
	inv := newSent(t, item("2", "100.00", "21"))
	now := issued.AddDate(0, 0, 3)

	_, err := inv.RecordPayment(d("100.00"), PaymentMethodCard, "", now)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusSent, inv.Status)
	assert.Equal(t, "142.00", inv.OutstandingBalance().StringFixed(2))

	_, err = inv.RecordPayment(d("200.00"), PaymentMethodCard, "", now)
	assert.ErrorIs(t, err, ErrOverpaymentRejected)
	assert.ErrorIs(t, err, ErrPaymentExceedsBalance)
	assert.Equal(t, "142.00", inv.OutstandingBalance().StringFixed(2))
	assert.Len(t, inv.Payments, 1)
}

func TestRecordPayment_Validation(t *testing.T) {
	inv := newSent(t, item("1", "50", "0"))

	_, err := inv.RecordPayment(d("0"), PaymentMethodCash, "", issued)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = inv.RecordPayment(d("-5"), PaymentMethodCash, "", issued)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = inv.RecordPayment(d("1.001"), PaymentMethodCash, "", issued)
	assert.ErrorIs(t, err, ErrInvalidAmountPrecision)

	_, err = inv.RecordPayment(d("1"), "cheque", "", issued)
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	assert.Empty(t, inv.Payments)
	assert.Equal(t, InvoiceStatusSent, inv.Status)
}

func TestRecordPayment_DefaultsToInvoiceMethod(t *testing.T) {
	inv := newSent(t, item("1", "50", "0"))

	p, err := inv.RecordPayment(d("10"), "", " ref-1 ", issued)
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodBankTransfer, p.Method)
	assert.Equal(t, "ref-1", p.Reference)
}

func TestRecordPayment_PartialWhileOverduePersistsOverdue(t *testing.T) {
	inv := newSent(t, item("1", "100", "0"))
	late := due.AddDate(0, 0, 5)

	assert.Equal(t, InvoiceStatusSent, inv.Status)
	assert.Equal(t, InvoiceStatusOverdue, inv.EffectiveStatus(late))

	_, err := inv.RecordPayment(d("40"), PaymentMethodCash, "", late)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)

	_, err = inv.RecordPayment(d("60"), PaymentMethodCash, "", late)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.False(t, inv.IsOverdue(late))
}

func TestBalanceNeverNegative(t *testing.T) {
	inv := newSent(t, item("3", "33.33", "19"), item("1", "0.01", "7"))
	grand := inv.Totals().GrandTotal
	amounts := []string{"10", "50.5", "0.01", "1000", "25.25", "0.99", "99"}

	for _, a := range amounts {
		before := len(inv.Payments)
		_, err := inv.RecordPayment(d(a), PaymentMethodCash, "", issued)
		if err != nil {
			assert.Len(t, inv.Payments, before)
		}
		assert.True(t, inv.OutstandingBalance().Equal(grand.Sub(SumPayments(inv.Payments))))
		assert.False(t, inv.OutstandingBalance().IsNegative())
	}
}

func TestFinalize(t *testing.T) {
	t.Run("assigns number once", func(t *testing.T) {
		inv := newDraft(t, item("1", "10", "0"))
		seq := &mockSequence{}
		seq.On("NextInvoiceNumber", mock.Anything).Return("INV-202603-00007", nil).Once()

		require.NoError(t, inv.Finalize(context.Background(), seq, issued))
		assert.Equal(t, InvoiceStatusSent, inv.Status)
		require.NotNil(t, inv.InvoiceNumber)
		assert.Equal(t, "INV-202603-00007", *inv.InvoiceNumber)
		assert.NotNil(t, inv.FinalizedAt)
		seq.AssertNumberOfCalls(t, "NextInvoiceNumber", 1)
	})

	t.Run("no line items", func(t *testing.T) {
		inv := newDraft(t)
		seq := &mockSequence{}

		err := inv.Finalize(context.Background(), seq, issued)
		assert.ErrorIs(t, err, ErrInvoiceHasNoLineItems)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		seq.AssertNotCalled(t, "NextInvoiceNumber", mock.Anything)
	})

	t.Run("zero total", func(t *testing.T) {
		inv := newDraft(t, item("1", "0", "21"))
		seq := &mockSequence{}

		assert.ErrorIs(t, inv.Finalize(context.Background(), seq, issued), ErrInvoiceTotalNotPositive)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		seq.AssertNotCalled(t, "NextInvoiceNumber", mock.Anything)
	})

	t.Run("allocator failure leaves draft", func(t *testing.T) {
		inv := newDraft(t, item("1", "10", "0"))
		seq := &mockSequence{}
		seq.On("NextInvoiceNumber", mock.Anything).Return("", errors.New("db down")).Once()

		assert.Error(t, inv.Finalize(context.Background(), seq, issued))
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.Nil(t, inv.InvoiceNumber)
	})
}

func TestLineItemMutations(t *testing.T) {
	inv := newDraft(t, item("1", "10", "0"), item("2", "5", "0"))

	require.NoError(t, inv.AddLineItem(item("1", "1", "0"), issued))
	require.NoError(t, inv.UpdateLineItem(0, item("3", "10", "0"), issued))
	require.NoError(t, inv.RemoveLineItem(1, issued))
	assert.Len(t, inv.LineItems, 2)
	assert.Equal(t, "31.00", inv.Totals().GrandTotal.StringFixed(2))

	assert.ErrorIs(t, inv.RemoveLineItem(2, issued), ErrInvalidLineItemIndex)
	assert.ErrorIs(t, inv.RemoveLineItem(-1, issued), ErrInvalidLineItemIndex)
	assert.ErrorIs(t, inv.UpdateLineItem(5, item("1", "1", "0"), issued), ErrInvalidLineItemIndex)
	assert.ErrorIs(t, inv.AddLineItem(item("1", "1", "101"), issued), ErrInvalidVATRate)
	assert.Len(t, inv.LineItems, 2)
}

func TestLineItemPriceFollowsCurrencyMinorUnit(t *testing.T) {
	eur := newDraft(t, item("1", "10", "0"))
	assert.ErrorIs(t, eur.AddLineItem(item("1", "10.005", "0"), issued), ErrInvalidUnitPricePrecision)
	assert.ErrorIs(t, eur.UpdateLineItem(0, item("1", "10.005", "0"), issued), ErrInvalidUnitPricePrecision)
	assert.Len(t, eur.LineItems, 1)
	assert.True(t, eur.LineItems[0].UnitPrice.Equal(d("10")))

	jpy, err := NewInvoice(NewInvoiceParams{ID: 2, Customer: Customer{Name: "Tanaka KK"}, Currency: "jpy", IssueDate: issued, DueDate: due})
	require.NoError(t, err)
	assert.ErrorIs(t, jpy.AddLineItem(item("1", "100.5", "0"), issued), ErrInvalidUnitPricePrecision)
	assert.Empty(t, jpy.LineItems)
	assert.True(t, jpy.Totals().GrandTotal.IsZero())

	require.NoError(t, jpy.AddLineItem(item("1", "100", "10"), issued))
	assert.Equal(t, "110", jpy.Totals().GrandTotal.StringFixed(0))

	_, err = NewInvoice(NewInvoiceParams{
		ID: 3, Customer: Customer{Name: "Tanaka KK"}, Currency: "JPY", IssueDate: issued, DueDate: due,
		LineItems: []LineItem{item("1", "100.5", "0")},
	})
	assert.ErrorIs(t, err, ErrInvalidUnitPricePrecision)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLineItemsFrozenAfterFinalize(t *testing.T) {
	inv := newSent(t, item("1", "10", "0"))

	assert.ErrorIs(t, inv.AddLineItem(item("1", "1", "0"), issued), ErrInvoiceNotDraft)
	assert.ErrorIs(t, inv.UpdateLineItem(0, item("1", "1", "0"), issued), ErrInvoiceNotDraft)
	assert.ErrorIs(t, inv.RemoveLineItem(0, issued), ErrInvalidStateTransition)
	assert.Len(t, inv.LineItems, 1)
}

func TestTransitionTable(t *testing.T) {
	ctx := context.Background()
	okSeq := func() SequenceAllocator {
		seq := &mockSequence{}
		seq.On("NextInvoiceNumber", mock.Anything).Return("INV-1", nil)
		return seq
	}
	build := map[InvoiceStatus]func(t *testing.T) *Invoice{
		InvoiceStatusDraft: func(t *testing.T) *Invoice { return newDraft(t, item("1", "10", "0")) },
		InvoiceStatusSent:  func(t *testing.T) *Invoice { return newSent(t, item("1", "10", "0")) },
		InvoiceStatusPaid: func(t *testing.T) *Invoice {
			inv := newSent(t, item("1", "10", "0"))
			_, err := inv.RecordPayment(d("10"), PaymentMethodCash, "", issued)
			require.NoError(t, err)
			return inv
		},
		InvoiceStatusCancelled: func(t *testing.T) *Invoice {
			inv := newDraft(t, item("1", "10", "0"))
			require.NoError(t, inv.Cancel(issued))
			return inv
		},
		InvoiceStatusClosed: func(t *testing.T) *Invoice {
			inv := newSent(t, item("1", "10", "0"))
			_, err := inv.RecordPayment(d("10"), PaymentMethodCash, "", issued)
			require.NoError(t, err)
			require.NoError(t, inv.Archive(issued))
			return inv
		},
	}

	events := map[string]func(inv *Invoice) error{
		"finalize": func(inv *Invoice) error { return inv.Finalize(ctx, okSeq(), issued) },
		"cancel":   func(inv *Invoice) error { return inv.Cancel(issued) },
		"archive":  func(inv *Invoice) error { return inv.Archive(issued) },
		"payment": func(inv *Invoice) error {
			_, err := inv.RecordPayment(d("1"), PaymentMethodCash, "", issued)
			return err
		},
		"reminder": func(inv *Invoice) error {
			_, err := inv.SendReminder(ReminderTierFirst, "", issued)
			return err
		},
	}

	allowed := map[InvoiceStatus]map[string]InvoiceStatus{
		InvoiceStatusDraft: {"finalize": InvoiceStatusSent, "cancel": InvoiceStatusCancelled},
		InvoiceStatusSent: {
			"cancel":   InvoiceStatusCancelled,
			"payment":  InvoiceStatusSent,
			"reminder": InvoiceStatusSent,
		},
		InvoiceStatusPaid:      {"archive": InvoiceStatusClosed},
		InvoiceStatusCancelled: {},
		InvoiceStatusClosed:    {},
	}

	for from, mk := range build {
		for name, apply := range events {
			t.Run(string(from)+"/"+name, func(t *testing.T) {
				inv := mk(t)
				before := inv.Clone()

				err := apply(inv)
				to, ok := allowed[from][name]
				if ok {
					require.NoError(t, err)
					assert.Equal(t, to, inv.Status)
					return
				}
				assert.ErrorIs(t, err, ErrInvalidStateTransition)
				assert.Equal(t, before, inv)
			})
		}
	}
}

func TestSendReminder_MonotonicEscalation(t *testing.T) {
	inv := newSent(t, item("1", "10", "0"))

	_, err := inv.SendReminder(ReminderTierSecond, "polite nudge", issued)
	require.NoError(t, err)
	_, err = inv.SendReminder(ReminderTierSecond, "again", issued)
	require.NoError(t, err)

	_, err = inv.SendReminder(ReminderTierFirst, "", issued)
	assert.ErrorIs(t, err, ErrReminderTierDowngrade)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = inv.SendReminder("urgent", "", issued)
	assert.ErrorIs(t, err, ErrInvalidReminderTier)

	_, err = inv.SendReminder(ReminderTierFinal, "", issued)
	require.NoError(t, err)
	assert.Len(t, inv.Reminders, 3)

	last, ok := inv.LastReminderTier()
	assert.True(t, ok)
	assert.Equal(t, ReminderTierFinal, last)
}

func TestCancelSentWithPartialPayment(t *testing.T) {
	inv := newSent(t, item("1", "100", "0"))
	_, err := inv.RecordPayment(d("30"), PaymentMethodCash, "", issued)
	require.NoError(t, err)

	require.NoError(t, inv.Cancel(issued))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	assert.False(t, inv.IsOverdue(due.AddDate(1, 0, 0)))
	assert.Len(t, inv.Payments, 1)
}

func TestAddNote(t *testing.T) {
	inv := newSent(t, item("1", "10", "0"))

	_, err := inv.AddNote("", "text", issued)
	assert.ErrorIs(t, err, ErrInvalidAuthor)
	_, err = inv.AddNote("maria", "  ", issued)
	assert.ErrorIs(t, err, ErrInvalidNote)

	note, err := inv.AddNote("maria", "called customer", issued)
	require.NoError(t, err)
	assert.Equal(t, "maria", note.Author)
	assert.Len(t, inv.Notes, 1)
}

func TestEffectiveStatus(t *testing.T) {
	inv := newSent(t, item("1", "10", "0"))

	assert.Equal(t, InvoiceStatusSent, inv.EffectiveStatus(due))
	assert.Equal(t, InvoiceStatusOverdue, inv.EffectiveStatus(due.Add(time.Second)))

	draft := newDraft(t, item("1", "10", "0"))
	assert.Equal(t, InvoiceStatusDraft, draft.EffectiveStatus(due.AddDate(1, 0, 0)))
}

func TestKindAndCode(t *testing.T) {
	assert.Equal(t, "validation_error", Kind(ErrInvalidQuantity))
	assert.Equal(t, "invalid_quantity", Code(ErrInvalidQuantity))
	assert.Equal(t, "not_found", Kind(ErrInvoiceNotFound))
	assert.Equal(t, "concurrent_modification", Kind(ErrVersionConflict))
	assert.Equal(t, "", Kind(errors.New("boom")))
}
