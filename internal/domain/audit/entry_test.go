package audit

import (
	"encoding/json"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleEvent struct {
	shared.BaseDomainEvent
	Amount string `json:"amount"`
}

func TestNewEntry(t *testing.T) {
	tenantID, actorID, aggID := uuid.New(), uuid.New(), uuid.New()
	op := shared.NewTenantOpContext(tenantID, actorID).WithIdempotencyKey("k-1")
	op.RequestID = "req-9"
	event := &sampleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("DocumentPosted", "Invoice", aggID, tenantID),
		Amount:          "250",
	}

	entry, err := NewEntry(op, event)
	require.NoError(t, err)
	assert.Equal(t, tenantID, entry.TenantID)
	assert.Equal(t, actorID, entry.ActorID)
	assert.Equal(t, "DocumentPosted", entry.Action)
	assert.Equal(t, aggID, entry.AggregateID)
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, "k-1", entry.IdempotencyKey)
	assert.Equal(t, "req-9", entry.RequestID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(entry.Payload, &decoded))
	assert.Equal(t, "250", decoded["amount"])
	assert.Equal(t, "Invoice", decoded["aggregate_type"])
}
