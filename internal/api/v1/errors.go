package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// storeError maps repository errors to API errors. Internal details are
// logged and never returned.
func storeError(msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("already exists")
	case errors.Is(err, tenancy.ErrMissingTenantContext):
		log.Error().Err(err).Msg("api: data access without institute context")
		return huma.Error500InternalServerError("internal error")
	}
	log.Error().Err(err).Msg("api: " + msg)
	return huma.Error500InternalServerError(msg)
}

// requireRole returns the acting principal if its role is one of roles.
func requireRole(ctx context.Context, roles ...domain.Role) (*domain.Principal, error) {
	p, ok := tenancy.PrincipalFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return nil, huma.Error403Forbidden("insufficient permissions")
}
