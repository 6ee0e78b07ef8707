package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// StudentRepo accesses tenant-owned student rows through the Router. None of
// its queries filter by institute: the row policy bound by the Router does.
type StudentRepo struct {
	router *Router
}

func NewStudentRepo(router *Router) *StudentRepo {
	return &StudentRepo{router: router}
}

const studentColumns = `id, tenant_id, user_id, full_name, email, grade, enrolled_at, created_at, updated_at`

// Create stamps the ambient institute onto s. A super-admin acting without a
// resolved institute must set s.TenantID explicitly.
func (r *StudentRepo) Create(ctx context.Context, s *domain.Student) error {
	if rc, ok := tenancy.FromContext(ctx); ok && rc.Scoped() {
		s.TenantID = rc.TenantID
	}
	if s.TenantID == uuid.Nil {
		return fmt.Errorf("studentRepo.Create: %w", tenancy.ErrMissingTenantContext)
	}

	var userID *uuid.UUID
	if s.UserID != uuid.Nil {
		userID = &s.UserID
	}

	err := r.router.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO students (id, tenant_id, user_id, full_name, email, grade, enrolled_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.TenantID, userID, s.FullName,
			nilIfEmpty(s.Email), nilIfEmpty(s.Grade),
			s.EnrolledAt, s.CreatedAt, s.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("studentRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *StudentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	var s *domain.Student

	err := r.router.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		s, err = scanStudent(tx.QueryRow(ctx,
			`SELECT `+studentColumns+` FROM students WHERE id = $1`,
			id,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("studentRepo.GetByID: %w", mapErr(err))
	}

	return s, nil
}

func (r *StudentRepo) List(ctx context.Context, limit, offset int) ([]*domain.Student, error) {
	var students []*domain.Student

	err := r.router.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+studentColumns+` FROM students
			 ORDER BY full_name, id
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanStudent(rows)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			students = append(students, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("studentRepo.List: %w", err)
	}

	return students, nil
}

func (r *StudentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.router.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("studentRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("studentRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanStudent(row pgx.Row) (*domain.Student, error) {
	var s domain.Student
	var userID *uuid.UUID
	var email, grade *string

	err := row.Scan(&s.ID, &s.TenantID, &userID, &s.FullName, &email, &grade, &s.EnrolledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		s.UserID = *userID
	}
	s.Email = derefStr(email)
	s.Grade = derefStr(grade)

	return &s, nil
}
