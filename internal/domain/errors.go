package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound         = errors.New("domain: not found")
	ErrConflict         = errors.New("domain: conflict")
	ErrForbidden        = errors.New("domain: forbidden")
	ErrAccountSuspended = errors.New("domain: account suspended")
	ErrAccountInactive  = errors.New("domain: account inactive")
)

// Err returns the error that denies an account in status s, or nil when the
// account may act.
func (s AccountStatus) Err() error {
	switch s {
	case AccountActive:
		return nil
	case AccountSuspended:
		return ErrAccountSuspended
	default:
		return ErrAccountInactive
	}
}
