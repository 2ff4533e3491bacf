package handlers

import (
	"errors"
	"time"

	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
	"pehlione.com/shop/internal/shared/apperr"
)

// RetryAfter is the hint sent with 503 answers.
const RetryAfter = 30 * time.Second

// MapError converts order and payment errors into an AppError carrying the cause.
func MapError(err error) *apperr.AppError {
	if err == nil {
		return nil
	}
	if ae, ok := apperr.As(err); ok {
		return ae
	}

	switch {
	case errors.Is(err, orders.ErrInvalidOrder), errors.Is(err, orders.ErrNothingToUpdate),
		errors.Is(err, orders.ErrFieldNotWritable):
		return apperr.InvalidErr(err.Error(), nil).WithErr(err)
	case errors.Is(err, orders.ErrInvalidTransition):
		return apperr.ConflictErr(err.Error()).WithErr(err)
	case errors.Is(err, orders.ErrTerminal), errors.Is(err, orders.ErrPaidNotDeletable):
		return apperr.ConflictErr(err.Error()).WithErr(err)
	case errors.Is(err, orders.ErrConcurrentUpdate):
		return apperr.ConflictErr("Order was modified concurrently, reload and retry.").WithErr(err)
	}

	switch payments.Classify(err) {
	case payments.ClassAuth:
		return apperr.UnauthorizedErr("Invalid signature.").WithErr(err)
	case payments.ClassValidation:
		return apperr.InvalidErr(err.Error(), nil).WithErr(err)
	case payments.ClassNotFound:
		return apperr.NotFoundErr("Order not found.").WithErr(err)
	case payments.ClassConflict:
		return apperr.ConflictErr(err.Error()).WithErr(err)
	case payments.ClassBusinessRule:
		return &apperr.AppError{Kind: apperr.Invalid, PublicMsg: err.Error(), Err: err}
	case payments.ClassTransient:
		return apperr.UnavailableErr("Temporarily unavailable, retry later.", RetryAfter).WithErr(err)
	default:
		return apperr.Wrap(err)
	}
}
