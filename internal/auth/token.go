package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const issuerName = "helpdesk-service"

// Claims is the JWT payload. The subject id rides in the registered Subject
// field; SubjectType tells the middleware which table to load it from.
type Claims struct {
	SubjectType domain.SubjectType `json:"typ"`
	Role        *domain.StaffRole  `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the principal id the token was issued for.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer with the given HMAC secret and token TTL.
func NewTokenIssuer(secret string, ttlMinutes int) *TokenIssuer {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMinutes) * time.Minute,
	}
}

// Issue signs a token for the principal and returns it with its expiry.
func (ti *TokenIssuer) Issue(subjectID string, subjectType domain.SubjectType, role *domain.StaffRole) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.ttl)
	claims := &Claims{
		SubjectType: subjectType,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature, algorithm and issuer and returns the claims.
func (ti *TokenIssuer) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{},
		func(*jwt.Token) (interface{}, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
