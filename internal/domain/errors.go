package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrGone              = errors.New("listing delisted")
	ErrConflict          = errors.New("listing already sold")
	ErrAlreadyLocked     = errors.New("listing already locked")
	ErrSelfLockForbidden = errors.New("seller cannot lock own listing")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrListingNotLocked  = errors.New("listing is not locked by buyer")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrForbidden         = errors.New("forbidden")
	ErrStaleVersion      = errors.New("stale version")
	ErrInvalidInput      = errors.New("invalid input")
)

// IsConflict reports rejections expected under normal concurrent use.
// They are surfaced to the caller and never retried by the core.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSelfLockForbidden) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrListingNotLocked)
}

// IsNotFound reports stale or unknown references.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrGone)
}
