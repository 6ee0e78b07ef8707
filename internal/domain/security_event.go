package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SecurityEvent records a rejected tenant signal or credential for
// intrusion detection. Raw is the offending value exactly as received; it is
// never echoed back to clients.
type SecurityEvent struct {
	ID        uuid.UUID
	Kind      string // "invalid_subdomain", "invalid_tenant_param", "forbidden_tenant", ...
	Raw       string
	ClientIP  string
	UserID    uuid.UUID // uuid.Nil for anonymous callers
	Details   map[string]any
	CreatedAt time.Time
}

type SecurityEventRepository interface {
	Record(ctx context.Context, e *SecurityEvent) error
	ListRecent(ctx context.Context, limit, offset int) ([]*SecurityEvent, error)
}
