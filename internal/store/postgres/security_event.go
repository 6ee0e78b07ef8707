package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// SecurityEventRepo stores rejected tenant signals and credentials. The
// table is global and only readable by the super-admin surface.
type SecurityEventRepo struct {
	pool *pgxpool.Pool
}

func NewSecurityEventRepo(pool *pgxpool.Pool) *SecurityEventRepo {
	return &SecurityEventRepo{pool: pool}
}

func (r *SecurityEventRepo) Record(ctx context.Context, e *domain.SecurityEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("securityEventRepo.Record: marshal details: %w", err)
	}

	var userID *uuid.UUID
	if e.UserID != uuid.Nil {
		userID = &e.UserID
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO security_events (id, kind, raw, client_ip, user_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Kind, tenancy.CleanRaw(e.Raw), nilIfEmpty(e.ClientIP), userID, details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("securityEventRepo.Record: %w", err)
	}

	return nil
}

func (r *SecurityEventRepo) ListRecent(ctx context.Context, limit, offset int) ([]*domain.SecurityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, raw, client_ip, user_id, details, created_at
		 FROM security_events
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("securityEventRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	return scanSecurityEvents(rows, "securityEventRepo.ListRecent")
}

func scanSecurityEvents(rows pgx.Rows, caller string) ([]*domain.SecurityEvent, error) {
	var events []*domain.SecurityEvent
	for rows.Next() {
		var e domain.SecurityEvent
		var clientIP *string
		var userID *uuid.UUID
		var details []byte

		if err := rows.Scan(&e.ID, &e.Kind, &e.Raw, &clientIP, &userID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		e.ClientIP = derefStr(clientIP)
		if userID != nil {
			e.UserID = *userID
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("%s: unmarshal details: %w", caller, err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
