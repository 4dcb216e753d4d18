package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OpContextKey is the gin context key of the authenticated operation context
const OpContextKey = "op_context"

// MaxIdempotencyKeyLength matches the storage column
const MaxIdempotencyKeyLength = 255

const bearerPrefix = "Bearer "

// TokenVerifier verifies bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthConfig configures Authenticate
type AuthConfig struct {
	Verifier TokenVerifier
	// AllowDevHeaders accepts X-Tenant-ID and X-User-ID without a token.
	// X-Permissions (comma separated) narrows the grant, which is "*" otherwise.
	AllowDevHeaders bool
	Logger          *zap.Logger
}

// Authenticate builds the operation context of the request from a verified
// bearer token, or from development headers when enabled. The context is
// stored in the gin context and attached to the request context.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		op, err := resolveOp(c, cfg)
		if err != nil {
			log.Debug("Authentication failed",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			abortUnauthorized(c, err)
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeValidation,
				"Idempotency-Key must be at most 255 characters",
				GetRequestID(c),
			))
			return
		}
		op.IdempotencyKey = key
		op.RequestID = GetRequestID(c)

		c.Set(OpContextKey, op)
		c.Request = c.Request.WithContext(shared.ContextWithOp(c.Request.Context(), op))
		c.Next()
	}
}

func resolveOp(c *gin.Context, cfg AuthConfig) (shared.OpContext, error) {
	header := c.GetHeader(HeaderAuthorization)
	if header != "" {
		if !strings.HasPrefix(header, bearerPrefix) {
			return shared.OpContext{}, auth.ErrInvalidToken
		}
		if cfg.Verifier == nil {
			return shared.OpContext{}, auth.ErrInvalidToken
		}
		claims, err := cfg.Verifier.Verify(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			return shared.OpContext{}, err
		}
		override, err := optionalUUID(c.GetHeader(HeaderTenantID))
		if err != nil {
			return shared.OpContext{}, auth.ErrInvalidClaims
		}
		return claims.OpContext(override)
	}

	if !cfg.AllowDevHeaders {
		return shared.OpContext{}, errMissingCredentials
	}
	tenantID, err := optionalUUID(c.GetHeader(HeaderTenantID))
	if err != nil || tenantID == uuid.Nil {
		return shared.OpContext{}, auth.ErrMissingTenantID
	}
	userID, err := optionalUUID(c.GetHeader(HeaderUserID))
	if err != nil || userID == uuid.Nil {
		return shared.OpContext{}, auth.ErrMissingUserID
	}
	return shared.NewTenantOpContext(tenantID, userID, devPermissions(c.GetHeader(HeaderPermissions))...), nil
}

var errMissingCredentials = errors.New("missing authorization header")

func optionalUUID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func devPermissions(raw string) []shared.Permission {
	if strings.TrimSpace(raw) == "" {
		return []shared.Permission{shared.PermissionWildcard}
	}
	var perms []shared.Permission
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, shared.Permission(p))
		}
	}
	return perms
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrInvalidScope),
		errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID):
		code, message = dto.ErrCodeTokenInvalid, err.Error()
	}
	c.Header("WWW-Authenticate", `Bearer realm="ledger"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetOpContext returns the operation context stored by Authenticate
func GetOpContext(c *gin.Context) (shared.OpContext, bool) {
	v, ok := c.Get(OpContextKey)
	if !ok {
		return shared.OpContext{}, false
	}
	op, ok := v.(shared.OpContext)
	return op, ok
}

// RequirePermission rejects requests whose actor lacks perm. Services check
// permissions again; this keeps unauthorized traffic away from them.
func RequirePermission(perm shared.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := GetOpContext(c)
		if !ok {
			abortUnauthorized(c, errMissingCredentials)
			return
		}
		if err := shared.Authorize(op, perm); err != nil {
			code := dto.NormalizeErrorCode(shared.ErrorCode(err))
			c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, err.Error(), GetRequestID(c)))
			return
		}
		c.Next()
	}
}
