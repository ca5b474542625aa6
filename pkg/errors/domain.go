package errors

import stdErrors "errors"

// Domain failures surfaced by the ledger, order and waste services. They are
// always returned wrapped in an *Error so handlers can map them to HTTP status
// while callers match them with errors.Is.
var (
	ErrEmptyCart                 = stdErrors.New("cart has no items")
	ErrInsufficientBalance       = stdErrors.New("insufficient reward point balance")
	ErrApplyPointsFailed         = stdErrors.New("could not apply points to order")
	ErrPaymentGateway            = stdErrors.New("payment gateway unavailable")
	ErrPaymentVerificationFailed = stdErrors.New("payment signature verification failed")
	ErrInsufficientStock         = stdErrors.New("insufficient product stock")
)

// IsCode reports whether err carries a typed error with the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stdErrors.Is(err, target)
}
