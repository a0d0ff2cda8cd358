package service

import "errors"

var (
	// ErrCouponExists is returned when attempting to create a coupon whose code is taken
	ErrCouponExists = errors.New("coupon already exists")

	// ErrCouponNotFound is returned when a coupon cannot be found
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponNotActive is returned outside the coupon validity window
	ErrCouponNotActive = errors.New("coupon not active")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyIssued is returned when the user already holds the coupon
	ErrAlreadyIssued = errors.New("coupon already issued to user")

	// ErrSoldOut is returned when no capacity is left
	ErrSoldOut = errors.New("coupon sold out")

	// ErrVersionConflict is returned when the optimistic version guard rejects an update.
	// It is transient: the confirmation is retried.
	ErrVersionConflict = errors.New("coupon version conflict")

	// ErrTransient is returned by the gateway when infrastructure failed and the caller may retry
	ErrTransient = errors.New("temporarily unavailable, try again")
)

// IsDomainFailure reports whether err is a business outcome the confirmation
// worker resolves locally by cancelling the reservation, as opposed to an
// infrastructure failure that must be retried.
func IsDomainFailure(err error) bool {
	return errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrCouponNotFound) ||
		errors.Is(err, ErrCouponNotActive)
}
