package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/tenancy"
)

// Session settings read by the row-level policies.
const (
	TenantSetting = "app.current_institute_id"
	BypassSetting = "app.bypass_rls"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Router runs every tenant-owned data access inside a transaction whose
// local settings carry the ambient tenant, so the database's row policies
// do the filtering. Settings are transaction-local: they vanish at commit or
// rollback and never stay on a pooled connection.
type Router struct {
	db TxBeginner
}

func NewRouter(db TxBeginner) *Router {
	return &Router{db: db}
}

// InTx runs fn in a scoped transaction. fn must use the given tx for every
// statement. A tenant-bound principal without a resolved tenant gets
// tenancy.ErrMissingTenantContext before any SQL is sent.
func (r *Router) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	scope, err := tenancy.RequireScope(ctx)
	if err != nil {
		log.Error().Err(err).Msg("router: data access without tenant context")
		return fmt.Errorf("router.InTx: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("router.InTx: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			rbErr := tx.Rollback(context.WithoutCancel(ctx))
			if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Warn().Err(rbErr).Msg("router: rollback failed")
			}
		}
	}()

	if scope.Unscoped() {
		_, err = tx.Exec(ctx, "SELECT set_config($1, 'on', true)", BypassSetting)
	} else {
		_, err = tx.Exec(ctx, "SELECT set_config($1, $2, true)", TenantSetting, scope.TenantID.String())
	}
	if err != nil {
		return fmt.Errorf("router.InTx: set scope: %w", err)
	}

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("router.InTx: commit: %w", err)
	}

	return nil
}

// Exec runs a single raw statement through InTx.
func (r *Router) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := r.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var execErr error
		tag, execErr = tx.Exec(ctx, sql, args...)
		return execErr
	})
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("router.Exec: %w", err)
	}
	return tag, nil
}
