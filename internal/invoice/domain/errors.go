package domain

import "github.com/cockroachdb/errors"

// Error kinds. Every error produced by this package matches exactly one of
// them under errors.Is.
var (
	ErrValidation             = errors.New("validation_error")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrOverpaymentRejected    = errors.New("overpayment_rejected")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrNotFound               = errors.New("not_found")
)

var (
	ErrInvalidInvoiceID          = validation("invalid_invoice_id")
	ErrInvalidCustomer           = validation("invalid_customer")
	ErrInvalidCurrency           = validation("invalid_currency")
	ErrInvalidIssueDate          = validation("invalid_issue_date")
	ErrInvalidDueDate            = validation("invalid_due_date")
	ErrInvalidPaymentMethod      = validation("invalid_payment_method")
	ErrInvalidDescription        = validation("invalid_description")
	ErrInvalidQuantity           = validation("invalid_quantity")
	ErrInvalidUnit               = validation("invalid_unit")
	ErrInvalidUnitPrice          = validation("invalid_unit_price")
	ErrInvalidUnitPricePrecision = validation("invalid_unit_price_precision")
	ErrInvalidVATRate            = validation("invalid_vat_rate")
	ErrInvalidLineItemIndex      = validation("invalid_line_item_index")
	ErrInvalidAmount             = validation("invalid_amount")
	ErrInvalidAmountPrecision    = validation("invalid_amount_precision")
	ErrInvalidReminderTier       = validation("invalid_reminder_tier")
	ErrReminderTierDowngrade     = validation("reminder_tier_downgrade")
	ErrInvalidNote               = validation("invalid_note")
	ErrInvalidAuthor             = validation("invalid_author")
	ErrInvalidInvoiceNumber      = validation("invalid_invoice_number")
	ErrInvalidVersion            = validation("invalid_version")
	ErrInvalidReminderPolicy     = validation("invalid_reminder_policy")
	ErrInvalidPageToken          = validation("invalid_page_token")
	ErrInvalidStatusFilter       = validation("invalid_status_filter")
	ErrCurrencyMismatch          = validation("currency_mismatch")
)

var (
	ErrInvoiceNotDraft         = invalidTransition("invoice_not_draft")
	ErrInvoiceHasNoLineItems   = invalidTransition("invoice_has_no_line_items")
	ErrInvoiceTotalNotPositive = invalidTransition("invoice_total_not_positive")
	ErrInvoiceNotPayable       = invalidTransition("invoice_not_payable")
	ErrInvoiceNotRemindable    = invalidTransition("invoice_not_remindable")
	ErrInvoiceNotCancellable   = invalidTransition("invoice_not_cancellable")
	ErrInvoiceNotArchivable    = invalidTransition("invoice_not_archivable")
)

var (
	ErrPaymentExceedsBalance = kindError("payment_exceeds_outstanding_balance", ErrOverpaymentRejected)
	ErrVersionConflict       = kindError("invoice_version_conflict", ErrConcurrentModification)
	ErrInvoiceNotFound       = kindError("invoice_not_found", ErrNotFound)
)

// codedError is a sentinel that also matches its kind under errors.Is.
type codedError struct {
	code string
	kind error
}

func (e *codedError) Error() string { return e.code }

func (e *codedError) Is(target error) bool { return target == e.kind }

func kindError(code string, kind error) error {
	return &codedError{code: code, kind: kind}
}

func validation(code string) error {
	return kindError(code, ErrValidation)
}

func invalidTransition(code string) error {
	return kindError(code, ErrInvalidStateTransition)
}

// Kind returns the error kind code of err, or "" when err carries none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return ErrValidation.Error()
	case errors.Is(err, ErrInvalidStateTransition):
		return ErrInvalidStateTransition.Error()
	case errors.Is(err, ErrOverpaymentRejected):
		return ErrOverpaymentRejected.Error()
	case errors.Is(err, ErrConcurrentModification):
		return ErrConcurrentModification.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	default:
		return ""
	}
}

// Code returns the snake_case code of the most specific domain error in err.
func Code(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return Kind(err)
}

var knownErrors = []error{
	ErrInvalidInvoiceID, ErrInvalidCustomer, ErrInvalidCurrency, ErrInvalidIssueDate,
	ErrInvalidDueDate, ErrInvalidPaymentMethod, ErrInvalidDescription, ErrInvalidQuantity,
	ErrInvalidUnit, ErrInvalidUnitPrice, ErrInvalidUnitPricePrecision, ErrInvalidVATRate,
	ErrInvalidLineItemIndex, ErrInvalidAmount, ErrInvalidAmountPrecision, ErrInvalidReminderTier,
	ErrReminderTierDowngrade, ErrInvalidNote, ErrInvalidAuthor, ErrInvalidInvoiceNumber,
	ErrInvalidVersion, ErrInvalidReminderPolicy, ErrInvalidPageToken, ErrInvalidStatusFilter,
	ErrCurrencyMismatch,
	ErrInvoiceNotDraft, ErrInvoiceHasNoLineItems, ErrInvoiceTotalNotPositive, ErrInvoiceNotPayable,
	ErrInvoiceNotRemindable, ErrInvoiceNotCancellable, ErrInvoiceNotArchivable,
	ErrPaymentExceedsBalance, ErrVersionConflict, ErrInvoiceNotFound,
}
