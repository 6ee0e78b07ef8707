package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

type SessionOutput struct {
	Body struct {
		InstituteID uuid.UUID   `json:"institute_id,omitzero" doc:"Resolved institute; absent for an unscoped super-admin"`
		UserID      uuid.UUID   `json:"user_id"`
		Role        domain.Role `json:"role"`
		Scoped      bool        `json:"scoped"`
	}
}

// RegisterSessionRoutes exposes the request context the tenant middleware
// established. It must be mounted behind Auth and ResolveTenant.
func RegisterSessionRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/session",
		Summary:     "Show the resolved institute, user and role of this request",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
		rc, ok := tenancy.FromContext(ctx)
		if !ok {
			return nil, storeError("session", tenancy.ErrMissingTenantContext)
		}

		out := &SessionOutput{}
		out.Body.InstituteID = rc.TenantID
		out.Body.UserID = rc.UserID
		out.Body.Role = rc.Role
		out.Body.Scoped = rc.Scoped()
		return out, nil
	})
}
