package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role       entity.Role `json:"role"`
	EmployeeID string      `json:"employeeId,omitempty"`
	Name       string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 bearer tokens
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService creates a token service. An empty issuer disables the issuer check.
func NewJWTService(secret, issuer string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a signed token for the actor
func (s *JWTService) Issue(actor *entity.Actor) (string, error) {
	if actor == nil || actor.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	}
	if !actor.Role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, actor.Role)
	}

	now := s.now()
	claims := Claims{
		Role:       actor.Role,
		EmployeeID: actor.EmployeeID,
		Name:       actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns the caller identity
func (s *JWTService) Verify(ctx context.Context, tokenString string) (*entity.Actor, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token missing", apperr.ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token has expired"
		} else if errors.Is(err, jwt.ErrTokenNotValidYet) {
			msg = "token not valid yet"
		}
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnauthorized, msg)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", apperr.ErrUnauthorized)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrUnauthorized, claims.Role)
	}

	return &entity.Actor{
		UserID:     claims.Subject,
		EmployeeID: claims.EmployeeID,
		Name:       claims.Name,
		Role:       claims.Role,
	}, nil
}

// Verify interface compliance
var _ port.IdentityVerifier = (*JWTService)(nil)
