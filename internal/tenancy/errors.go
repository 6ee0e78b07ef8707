package tenancy

import "errors"

var (
	// ErrInvalidIdentifier is returned for any value that is not a safe SQL
	// identifier. The offending value is never part of the message.
	ErrInvalidIdentifier = errors.New("tenancy: invalid identifier")

	// ErrInvalidTenantKey is returned for malformed tenant keys.
	ErrInvalidTenantKey = errors.New("tenancy: invalid tenant key")

	// ErrUnknownTablePrefix is returned when a table name is requested for a
	// prefix outside the allow-list.
	ErrUnknownTablePrefix = errors.New("tenancy: unknown table prefix")

	// ErrMissingTenantContext is a programmer error: a tenant-bound principal
	// reached a data access without an established tenant.
	ErrMissingTenantContext = errors.New("tenancy: missing tenant context")
)
