package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Student is a tenant-owned record. Repositories never take a tenant id for
// reads: the row-level policy bound to the request's institute filters them.
type Student struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"institute_id"`
	UserID     uuid.UUID `json:"user_id,omitzero"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email,omitempty"`
	Grade      string    `json:"grade,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StudentRepository interface {
	Create(ctx context.Context, s *Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
	List(ctx context.Context, limit, offset int) ([]*Student, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
