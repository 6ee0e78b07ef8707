package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/gosuda/campus/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenRevoked       = errors.New("auth: token revoked")
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// RevocationStore remembers revoked token ids until they would have expired
// anyway. *redis.Revocations satisfies it.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenPair is the result of a login.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service provides login, refresh and logout.
type Service struct {
	users       domain.UserRepository
	revocations RevocationStore
	jwtSecret   string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// NewService creates a new auth service.
func NewService(users domain.UserRepository, revocations RevocationStore, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:       users,
		revocations: revocations,
		jwtSecret:   jwtSecret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

// Login validates email/password and returns access + refresh JWT tokens.
// Suspended and inactive accounts cannot log in.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if err := user.Status.Err(); err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	return s.issuePair(user)
}

// LoginWithEmail issues a token pair for an email an external identity
// provider has already verified. Only existing campus users can sign in.
func (s *Service) LoginWithEmail(ctx context.Context, email string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("auth.LoginWithEmail: %w", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.LoginWithEmail: %w", err)
	}

	if err := user.Status.Err(); err != nil {
		return nil, fmt.Errorf("auth.LoginWithEmail: %w", err)
	}

	return s.issuePair(user)
}

// Refresh validates a refresh token and issues a new access token. The
// user's current role and status are re-read, so a suspension takes effect
// at the next refresh at the latest.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", ErrInvalidToken)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}
	if revoked {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", ErrTokenRevoked)
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", ErrInvalidToken)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}
	if err := user.Status.Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}

	expires := time.Now().Add(s.accessTTL)
	access, err := IssueAccessToken(s.jwtSecret, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.Refresh: %w", err)
	}

	return access, expires, nil
}

// Logout revokes the given tokens until their natural expiry. Tokens that
// are already invalid or expired are ignored.
func (s *Service) Logout(ctx context.Context, tokens ...string) error {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		claims, err := ValidateToken(s.jwtSecret, tok)
		if err != nil {
			continue
		}
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("auth.Logout: %w", err)
		}
	}
	return nil
}

// CreateUser stores a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, email, password, name string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("auth.CreateUser: unknown role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth.CreateUser: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Status:       domain.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.CreateUser: %w", err)
	}

	return user, nil
}

func (s *Service) issuePair(user *domain.User) (*TokenPair, error) {
	now := time.Now()

	access, err := IssueAccessToken(s.jwtSecret, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.issuePair: %w", err)
	}

	refresh, err := IssueRefreshToken(s.jwtSecret, user.ID, user.Role, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.issuePair: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// HashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// VerifyPassword checks a password against an argon2id hash.
func VerifyPassword(password, encoded string) bool {
	saltHex, hashHex, ok := strings.Cut(encoded, "$")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expectedHash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expectedHash) == 1
}
