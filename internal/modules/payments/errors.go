package payments

import (
	"errors"

	"pehlione.com/shop/internal/modules/orders"
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed webhook event")
	ErrMissingMetadata     = errors.New("webhook event missing reference or order_id")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderTerminal       = errors.New("order is cancelled or refunded")
	ErrPaidOtherReference  = errors.New("order already paid with a different reference")
	ErrPaymentNotSucceeded = errors.New("payment not successful")
	ErrAmountMismatch      = errors.New("paid amount is less than the order total")
	ErrMetadataMismatch    = errors.New("gateway metadata order_id does not match")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrStoreUnavailable    = errors.New("order store unavailable")
	ErrConcurrentUpdate    = errors.New("order changed during reconciliation")

	ErrOrderNotPayable = errors.New("order not payable")
	ErrGatewayDeclined = errors.New("payment gateway declined the request")
	ErrNotRefundable   = errors.New("order not refundable")
)

// Class is the reconciliation error taxonomy.
type Class string

const (
	ClassNone         Class = ""
	ClassAuth         Class = "auth"
	ClassValidation   Class = "validation"
	ClassNotFound     Class = "not_found"
	ClassConflict     Class = "conflict"
	ClassBusinessRule Class = "business_rule"
	ClassTransient    Class = "transient"
	ClassInternal     Class = "internal"
)

// Classify places err in the taxonomy. Anything unrecognised is internal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInvalidSignature):
		return ClassAuth
	case errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrMissingMetadata):
		return ClassValidation
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, orders.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrOrderTerminal), errors.Is(err, ErrPaidOtherReference),
		errors.Is(err, ErrOrderNotPayable), errors.Is(err, ErrNotRefundable),
		errors.Is(err, orders.ErrReferenceInUse):
		return ClassConflict
	case errors.Is(err, ErrPaymentNotSucceeded), errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrMetadataMismatch), errors.Is(err, ErrGatewayDeclined):
		return ClassBusinessRule
	case errors.Is(err, ErrGatewayUnavailable), errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrConcurrentUpdate):
		return ClassTransient
	default:
		return ClassInternal
	}
}

// IsClientError reports whether redelivering the same request cannot succeed without
// something else changing first.
func (c Class) IsClientError() bool {
	switch c {
	case ClassAuth, ClassValidation, ClassNotFound, ClassConflict, ClassBusinessRule:
		return true
	}
	return false
}
