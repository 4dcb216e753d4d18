package auth

import (
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope claim values
const (
	ScopeTenant = "tenant"
	ScopeSystem = "system"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrInvalidScope     = errors.New("invalid scope claim")
)

// Claims are the bearer token claims issued by the identity service
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions,omitempty"`
	Scope       string   `json:"scope,omitempty"`
}

// Verifier validates HS256 bearer tokens. Tokens are issued elsewhere; Issue
// exists for tooling and tests.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier from the jwt configuration section
func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Verify parses the token and checks signature, time claims, issuer and the
// required tenant and user claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	switch claims.Scope {
	case "", ScopeTenant, ScopeSystem:
	default:
		return nil, ErrInvalidScope
	}
	return claims, nil
}

// OpContext converts verified claims into the operation context. A system
// scoped actor may act on tenantOverride; everyone else acts on the tenant
// of the token.
func (c *Claims) OpContext(tenantOverride uuid.UUID) (shared.OpContext, error) {
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return shared.OpContext{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return shared.OpContext{}, ErrInvalidClaims
	}

	perms := make([]shared.Permission, len(c.Permissions))
	for i, p := range c.Permissions {
		perms[i] = shared.Permission(p)
	}

	if c.Scope == ScopeSystem {
		if tenantOverride != uuid.Nil {
			tenantID = tenantOverride
		}
		return shared.OpContext{
			TenantID:    tenantID,
			ActorID:     userID,
			Scope:       shared.SystemScope{},
			Permissions: perms,
		}, nil
	}
	return shared.NewTenantOpContext(tenantID, userID, perms...), nil
}

// IssueInput describes a token to mint
type IssueInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Permissions []string
	Scope       string
	TTL         time.Duration
}

// Issue signs a token with the verifier's secret
func (v *Verifier) Issue(in IssueInput) (string, error) {
	if in.TTL <= 0 {
		in.TTL = time.Hour
	}
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   in.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(in.TTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    in.TenantID.String(),
		UserID:      in.UserID.String(),
		Permissions: in.Permissions,
		Scope:       in.Scope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
