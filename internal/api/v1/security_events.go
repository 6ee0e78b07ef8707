package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
)

type ListSecurityEventsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

// SecurityEventView is the audit view of a rejected signal. The raw value
// is included because only super-admins can read it.
type SecurityEventView struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Raw       string         `json:"raw"`
	ClientIP  string         `json:"client_ip,omitempty"`
	UserID    uuid.UUID      `json:"user_id,omitzero"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ListSecurityEventsOutput struct {
	Body []SecurityEventView
}

func RegisterSecurityEventRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-security-events",
		Method:      http.MethodGet,
		Path:        "/security-events",
		Summary:     "List recent rejected tenant signals",
		Tags:        []string{"Security"},
	}, func(ctx context.Context, input *ListSecurityEventsInput) (*ListSecurityEventsOutput, error) {
		if _, err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
			return nil, err
		}

		events, err := store.SecurityEvents().ListRecent(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, storeError("failed to list security events", err)
		}

		views := make([]SecurityEventView, 0, len(events))
		for _, e := range events {
			views = append(views, SecurityEventView{
				ID:        e.ID,
				Kind:      e.Kind,
				Raw:       e.Raw,
				ClientIP:  e.ClientIP,
				UserID:    e.UserID,
				Details:   e.Details,
				CreatedAt: e.CreatedAt,
			})
		}
		return &ListSecurityEventsOutput{Body: views}, nil
	})
}
