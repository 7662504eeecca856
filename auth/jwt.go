// Package auth validates and issues the HS256 bearer tokens that carry a
// caller's identity, role and business.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims represents the claims carried by an access token
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
}

// Config holds configuration for Validator
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration
	Now    func() time.Time
}

// Validator validates and issues HS256 tokens signed with a shared secret
type Validator struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewValidator creates a new Validator
func NewValidator(config Config) *Validator {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Validator{
		secret: []byte(config.Secret),
		issuer: config.Issuer,
		leeway: config.Leeway,
		now:    config.Now,
	}
}

// ValidateToken validates a token and returns the principal it names
func (v *Validator) ValidateToken(_ context.Context, tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: expected %s", ErrInvalidIssuer, v.issuer)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return parseClaims(claims)
}

// Issue signs a token for principal valid for ttl
func (v *Validator) Issue(principal *models.Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(principal.Role),
	}
	if principal.BusinessID != nil {
		claims.BusinessID = principal.BusinessID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseClaims converts Claims to a Principal
func parseClaims(claims *Claims) (*models.Principal, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: sub is not a UUID: %v", ErrInvalidToken, err)
	}

	role := models.UserRole(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	principal := &models.Principal{UserID: userID, Role: role}

	if claims.BusinessID != "" {
		businessID, err := uuid.Parse(claims.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("%w: business_id is not a UUID: %v", ErrInvalidToken, err)
		}
		principal.BusinessID = &businessID
	}
	if role == models.RoleBusiness && principal.BusinessID == nil {
		return nil, fmt.Errorf("%w: business_id", ErrMissingClaim)
	}

	return principal, nil
}
