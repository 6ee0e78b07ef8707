package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
)

type CreateStudentInput struct {
	Body struct {
		// InstituteID is consumed by the tenant middleware; the record is
		// always created in the resolved institute.
		InstituteID string    `json:"institute_id,omitempty" required:"false" doc:"Target institute (optional)"`
		FullName    string    `json:"full_name" minLength:"1" maxLength:"255" doc:"Student full name"`
		Email       string    `json:"email,omitempty" required:"false" maxLength:"255" doc:"Contact email"`
		Grade       string    `json:"grade,omitempty" required:"false" maxLength:"32" doc:"Grade or class"`
		UserID      uuid.UUID `json:"user_id,omitzero" required:"false" doc:"Linked student account"`
	}
}

type StudentOutput struct {
	Body *domain.Student
}

type GetStudentInput struct {
	ID uuid.UUID `path:"id" doc:"Student ID"`
}

type ListStudentsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListStudentsOutput struct {
	Body []*domain.Student
}

type DeleteStudentInput struct {
	ID uuid.UUID `path:"id" doc:"Student ID"`
}

// RegisterStudentRoutes mounts the tenant-owned student records. The routes
// must sit behind ResolveTenant and RequireTenant; the repository narrows
// every query to the resolved institute.
func RegisterStudentRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-students",
		Method:      http.MethodGet,
		Path:        "/students",
		Summary:     "List students of the current institute",
		Tags:        []string{"Students"},
	}, func(ctx context.Context, input *ListStudentsInput) (*ListStudentsOutput, error) {
		if _, err := requireRole(ctx, staffRoles...); err != nil {
			return nil, err
		}

		students, err := store.Students().List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, storeError("failed to list students", err)
		}

		if students == nil {
			students = []*domain.Student{}
		}
		return &ListStudentsOutput{Body: students}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-student",
		Method:      http.MethodGet,
		Path:        "/students/{id}",
		Summary:     "Get a student by ID",
		Tags:        []string{"Students"},
	}, func(ctx context.Context, input *GetStudentInput) (*StudentOutput, error) {
		if _, err := requireRole(ctx, staffRoles...); err != nil {
			return nil, err
		}

		s, err := store.Students().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError("failed to get student", err)
		}

		return &StudentOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-student",
		Method:        http.MethodPost,
		Path:          "/students",
		Summary:       "Enroll a student in the current institute",
		Tags:          []string{"Students"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateStudentInput) (*StudentOutput, error) {
		if _, err := requireRole(ctx, staffRoles...); err != nil {
			return nil, err
		}

		now := time.Now()
		s := &domain.Student{
			ID:         uuid.New(),
			UserID:     input.Body.UserID,
			FullName:   input.Body.FullName,
			Email:      input.Body.Email,
			Grade:      input.Body.Grade,
			EnrolledAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := store.Students().Create(ctx, s); err != nil {
			return nil, storeError("failed to create student", err)
		}

		return &StudentOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-student",
		Method:        http.MethodDelete,
		Path:          "/students/{id}",
		Summary:       "Remove a student from the current institute",
		Tags:          []string{"Students"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteStudentInput) (*struct{}, error) {
		if _, err := requireRole(ctx, domain.RoleOwner, domain.RoleSuperAdmin); err != nil {
			return nil, err
		}

		if err := store.Students().Delete(ctx, input.ID); err != nil {
			return nil, storeError("failed to delete student", err)
		}

		return nil, nil
	})
}

var staffRoles = []domain.Role{domain.RoleOwner, domain.RoleTeacher, domain.RoleSuperAdmin} //nolint:gochecknoglobals // role set
