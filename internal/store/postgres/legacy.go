package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// LegacyImporter copies rows out of the per-institute tables of the old
// table-per-tenant layout (student_<key>) into the shared, policy-guarded
// tables. The table name is the only identifier ever interpolated into SQL
// and it is a tenancy.TableName, quoted once more by pgx.
type LegacyImporter struct {
	router *Router
}

func NewLegacyImporter(router *Router) *LegacyImporter {
	return &LegacyImporter{router: router}
}

// ImportStudents copies student_<tenantID> into students for that institute.
// Rows already imported are skipped, so the call is safe to repeat. It
// returns domain.ErrNotFound when the legacy table does not exist.
func (l *LegacyImporter) ImportStudents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	table, err := tenancy.BuildTableName(tenancy.PrefixStudent, tenantID.String())
	if err != nil {
		return 0, fmt.Errorf("legacyImporter.ImportStudents: %w", err)
	}

	rc := tenancy.RequestContext{TenantID: tenantID, Role: domain.RoleSuperAdmin}

	var imported int64
	err = tenancy.Run(ctx, rc, func(ctx context.Context) error {
		return l.router.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, quoteTable(table)).Scan(&exists); err != nil {
				return fmt.Errorf("lookup %s: %w", table, err)
			}
			if !exists {
				return domain.ErrNotFound
			}

			tag, err := tx.Exec(ctx, importStudentsSQL(table), tenantID)
			if err != nil {
				return fmt.Errorf("copy %s: %w", table, err)
			}
			imported = tag.RowsAffected()
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("legacyImporter.ImportStudents: %w", err)
	}

	return imported, nil
}

func quoteTable(t tenancy.TableName) string {
	return pgx.Identifier{t.String()}.Sanitize()
}

func importStudentsSQL(table tenancy.TableName) string {
	return `INSERT INTO students (id, tenant_id, legacy_id, full_name, email, grade, enrolled_at, created_at, updated_at)
	 SELECT gen_random_uuid(), $1, l.id, l.name, l.email, l.grade, l.created_at, now(), now()
	 FROM ` + quoteTable(table) + ` l
	 ON CONFLICT (tenant_id, legacy_id) DO NOTHING`
}
