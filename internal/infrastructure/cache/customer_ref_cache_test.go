package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/finance/acl"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRef(t *testing.T, name string) acl.CustomerReference {
	t.Helper()
	ref, err := acl.NewCustomerReference(uuid.New(), "C-1", name, "USD", nil, true)
	require.NoError(t, err)
	return ref
}

func TestCustomerRefCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewCustomerRefCache(time.Minute)
	tenantID := uuid.New()
	ref := newRef(t, "Acme")

	_, ok := c.Get(ctx, tenantID, ref.ID())
	assert.False(t, ok)

	c.Set(ctx, tenantID, ref)

	got, ok := c.Get(ctx, tenantID, ref.ID())
	require.True(t, ok)
	assert.Equal(t, "Acme", got.Name())

	_, ok = c.Get(ctx, uuid.New(), ref.ID())
	assert.False(t, ok, "references are tenant scoped")
}

func TestCustomerRefCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewCustomerRefCache(time.Minute)
	c.now = clock.Now
	tenantID := uuid.New()
	ref := newRef(t, "Acme")

	c.Set(ctx, tenantID, ref)
	clock.Advance(59 * time.Second)
	_, ok := c.Get(ctx, tenantID, ref.ID())
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, tenantID, ref.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCustomerRefCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewCustomerRefCache(time.Minute)
	tenantID := uuid.New()
	ref := newRef(t, "Acme")

	c.Set(ctx, tenantID, ref)
	c.Invalidate(ctx, tenantID, ref.ID())

	_, ok := c.Get(ctx, tenantID, ref.ID())
	assert.False(t, ok)
}

func TestCustomerRefCache_ZeroTTLDisables(t *testing.T) {
	ctx := context.Background()
	c := NewCustomerRefCache(0)
	tenantID := uuid.New()
	ref := newRef(t, "Acme")

	c.Set(ctx, tenantID, ref)
	_, ok := c.Get(ctx, tenantID, ref.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
