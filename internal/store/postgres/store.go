package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/domain"
)

type Store struct {
	pool           *pgxpool.Pool
	router         *Router
	tenants        *TenantRepo
	users          *UserRepo
	students       *StudentRepo
	securityEvents *SecurityEventRepo
	legacy         *LegacyImporter
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.AfterRelease = releaseIdle

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	router := NewRouter(pool)

	return &Store{
		pool:           pool,
		router:         router,
		tenants:        NewTenantRepo(pool),
		users:          NewUserRepo(pool),
		students:       NewStudentRepo(router),
		securityEvents: NewSecurityEventRepo(pool),
		legacy:         NewLegacyImporter(router),
	}, nil
}

// releaseIdle keeps a connection in the pool only when it is outside any
// transaction. A connection returned mid-transaction could still carry an
// institute setting, so it is destroyed instead.
func releaseIdle(conn *pgx.Conn) bool {
	if status := conn.PgConn().TxStatus(); status != 'I' {
		log.Warn().Str("tx_status", string(status)).Msg("postgres: discarding connection released inside a transaction")
		return false
	}
	return true
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Router() *Router                                { return s.router }
func (s *Store) Tenants() domain.TenantRepository               { return s.tenants }
func (s *Store) Users() domain.UserRepository                   { return s.users }
func (s *Store) Students() domain.StudentRepository             { return s.students }
func (s *Store) SecurityEvents() domain.SecurityEventRepository { return s.securityEvents }
func (s *Store) Legacy() *LegacyImporter                        { return s.legacy }
