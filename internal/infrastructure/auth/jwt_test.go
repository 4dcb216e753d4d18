package auth

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	return NewVerifier(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "identity",
	})
}

func TestVerifier_IssueAndVerify(t *testing.T) {
	v := newTestVerifier()
	tenantID, userID := uuid.New(), uuid.New()

	token, err := v.Issue(IssueInput{
		TenantID:    tenantID,
		UserID:      userID,
		Permissions: []string{"invoice:*", "journal:post"},
	})
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID.String(), claims.TenantID)
	assert.Equal(t, userID.String(), claims.UserID)

	op, err := claims.OpContext(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, tenantID, op.TenantID, "tenant scoped tokens ignore the override")
	assert.Equal(t, userID, op.ActorID)
	assert.Equal(t, shared.TenantScope{TenantID: tenantID}, op.Scope)
	assert.NoError(t, shared.Authorize(op, shared.PermInvoicePost))
	assert.Error(t, shared.Authorize(op, shared.PermJournalVoid))
}

func TestVerifier_SystemScope(t *testing.T) {
	v := newTestVerifier()
	override := uuid.New()

	token, err := v.Issue(IssueInput{TenantID: uuid.New(), UserID: uuid.New(), Scope: ScopeSystem, Permissions: []string{"*"}})
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)

	op, err := claims.OpContext(override)
	require.NoError(t, err)
	assert.Equal(t, override, op.TenantID)
	assert.Equal(t, shared.SystemScope{}, op.Scope)
	assert.NoError(t, shared.Authorize(op, shared.PermPeriodManage))
}

func TestVerifier_Rejects(t *testing.T) {
	v := newTestVerifier()
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("expired", func(t *testing.T) {
		issuer := newTestVerifier()
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := issuer.Issue(IssueInput{TenantID: tenantID, UserID: userID, TTL: time.Hour})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier(config.JWTConfig{Secret: "another-secret-key-of-32-characters", Issuer: "identity"})
		token, err := other.Issue(IssueInput{TenantID: tenantID, UserID: userID})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
		token, err := other.Issue(IssueInput{TenantID: tenantID, UserID: userID})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			TenantID: tenantID.String(), UserID: userID.String(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing tenant", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity"},
			UserID:           userID.String(),
		}).SignedString([]byte("test-secret-key-at-least-32-chars"))
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrMissingTenantID)
	})

	t.Run("unknown scope", func(t *testing.T) {
		token, err := v.Issue(IssueInput{TenantID: tenantID, UserID: userID, Scope: "galaxy"})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims_OpContextInvalidIDs(t *testing.T) {
	_, err := (&Claims{TenantID: "nope", UserID: uuid.NewString()}).OpContext(uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = (&Claims{TenantID: uuid.NewString(), UserID: "nope"}).OpContext(uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
