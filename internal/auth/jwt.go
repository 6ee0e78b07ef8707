package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
)

// Claims holds the JWT token payload. The subject is the user id and the
// token id (jti) is what logout revokes.
type Claims struct {
	jwt.RegisteredClaims
	Role      domain.Role `json:"role"`
	TokenType string      `json:"typ"` // "access" or "refresh"
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	issuer = "campus"
)

var (
	// ErrInvalidToken covers every signature, format and claim failure. Which
	// check failed is deliberately not distinguished.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is returned for a well-formed, correctly signed token
	// past its expiry, so clients can run their refresh flow.
	ErrTokenExpired = errors.New("auth: token expired")
)

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.Claims.UserID: %w", ErrInvalidToken)
	}
	return id, nil
}

// IssueAccessToken creates a signed JWT access token.
func IssueAccessToken(secret string, userID uuid.UUID, role domain.Role, ttl time.Duration) (string, error) {
	return issueToken(secret, userID, role, tokenTypeAccess, ttl)
}

// IssueRefreshToken creates a signed JWT refresh token.
func IssueRefreshToken(secret string, userID uuid.UUID, role domain.Role, ttl time.Duration) (string, error) {
	return issueToken(secret, userID, role, tokenTypeRefresh, ttl)
}

func issueToken(secret string, userID uuid.UUID, role domain.Role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		Role:      role,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.issueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT of any type.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		// Expiry is only reported once the signature has been verified;
		// golang-jwt checks claims after the signature.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("auth.ValidateToken: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	return claims, nil
}

// ValidateAccessToken is ValidateToken restricted to access tokens.
func ValidateAccessToken(secret, tokenString string) (*Claims, error) {
	claims, err := ValidateToken(secret, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("auth.ValidateAccessToken: %w", ErrInvalidToken)
	}
	return claims, nil
}
