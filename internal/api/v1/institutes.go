package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/server/middleware"
	"github.com/gosuda/campus/internal/tenancy"
)

type CreateInstituteInput struct {
	Body struct {
		Name      string    `json:"name" minLength:"1" maxLength:"255" doc:"Institute name"`
		Subdomain string    `json:"subdomain" minLength:"1" maxLength:"63" doc:"DNS label the institute is served under"`
		OwnerID   uuid.UUID `json:"owner_id,omitzero" required:"false" doc:"Owning user; super-admin only, owners always own what they create"`
	}
}

type CreateInstituteOutput struct {
	Body *domain.Tenant
}

type ListInstitutesInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListInstitutesOutput struct {
	Body []*domain.Tenant
}

// RegisterInstituteRoutes mounts the tenant catalog. The catalog is global,
// so these routes sit behind authentication only.
func RegisterInstituteRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-institute",
		Method:      http.MethodPost,
		Path:        "/institutes",
		Summary:     "Create a new institute",
		Tags:        []string{"Institutes"},
	}, func(ctx context.Context, input *CreateInstituteInput) (*CreateInstituteOutput, error) {
		p, err := requireRole(ctx, domain.RoleSuperAdmin, domain.RoleOwner)
		if err != nil {
			return nil, err
		}

		label, err := tenancy.ValidateSubdomain(strings.ToLower(input.Body.Subdomain))
		if err != nil {
			log.Warn().
				Str("reason", tenancy.ReasonInvalidSubdomain).
				Str("raw", tenancy.CleanRaw(input.Body.Subdomain)).
				Int("raw_len", len(input.Body.Subdomain)).
				Str("ip", middleware.ClientIPFromContext(ctx)).
				Str("user_id", p.ID.String()).
				Msg("api: institute subdomain rejected")
			return nil, huma.Error400BadRequest("invalid subdomain")
		}

		ownerID := p.ID
		if p.Role == domain.RoleSuperAdmin {
			if input.Body.OwnerID == uuid.Nil {
				return nil, huma.Error400BadRequest("owner_id is required")
			}
			if err := checkOwner(ctx, store, input.Body.OwnerID); err != nil {
				return nil, err
			}
			ownerID = input.Body.OwnerID
		}

		now := time.Now()
		t := &domain.Tenant{
			ID:        uuid.New(),
			Name:      input.Body.Name,
			Subdomain: label.String(),
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := store.Tenants().Create(ctx, t); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("subdomain already taken")
			}
			return nil, storeError("failed to create institute", err)
		}

		return &CreateInstituteOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-institutes",
		Method:      http.MethodGet,
		Path:        "/institutes",
		Summary:     "List institutes visible to the caller",
		Tags:        []string{"Institutes"},
	}, func(ctx context.Context, input *ListInstitutesInput) (*ListInstitutesOutput, error) {
		p, err := requireRole(ctx, domain.RoleSuperAdmin, domain.RoleOwner)
		if err != nil {
			return nil, err
		}

		var tenants []*domain.Tenant
		if p.Role == domain.RoleSuperAdmin {
			tenants, err = store.Tenants().ListPaginated(ctx, input.Limit, input.Offset)
		} else {
			tenants, err = store.Tenants().ListOwnedBy(ctx, p.ID)
		}
		if err != nil {
			return nil, storeError("failed to list institutes", err)
		}

		if tenants == nil {
			tenants = []*domain.Tenant{}
		}
		return &ListInstitutesOutput{Body: tenants}, nil
	})
}

func checkOwner(ctx context.Context, store DataStore, id uuid.UUID) error {
	u, err := store.Users().GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error400BadRequest("owner not found")
	}
	if err != nil {
		return storeError("failed to load owner", err)
	}
	if u.Role != domain.RoleOwner {
		return huma.Error400BadRequest("owner must have the institute-owner role")
	}
	return nil
}
