package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// TokenManager issues bearer tokens and resolves them into principals.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes the JWT payload. The user id travels in "sub".
type Claims struct {
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles,omitempty"`
	Teams       []string `json:"teams,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the principal.
func (tm *TokenManager) GenerateToken(p *domain.Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		OrgID:       p.OrgID,
		Roles:       p.Roles.Slice(),
		Teams:       p.Teams.Slice(),
		Permissions: p.Permissions.Slice(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Resolve decodes a bearer credential into a Principal. Absent, malformed,
// expired or wrongly signed credentials fail with Unauthenticated; a valid
// token without a user or org fails with InvalidClaims.
func (tm *TokenManager) Resolve(tokenStr string) (*domain.Principal, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, apperrors.NewUnauthenticated("missing credential")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperrors.NewUnauthenticated("invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperrors.NewUnauthenticated("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, apperrors.NewInvalidClaims("token has no user id")
	}
	if strings.TrimSpace(claims.OrgID) == "" {
		return nil, apperrors.NewInvalidClaims("token has no org id")
	}

	return &domain.Principal{
		UserID:      claims.Subject,
		OrgID:       claims.OrgID,
		Roles:       domain.NewStringSet(claims.Roles...),
		Teams:       domain.NewStringSet(claims.Teams...),
		Permissions: domain.NewStringSet(claims.Permissions...),
	}, nil
}
