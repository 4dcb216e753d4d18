package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, tenantID uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Invoice", uuid.New(), tenantID),
		Data:            "test data",
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("DocumentPosted")
	bus.Subscribe(handler)

	event := newTestEvent("DocumentPosted", uuid.New())
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Equal(t, []shared.DomainEvent{event}, handler.getHandled())
}

func TestInMemoryEventBus_Publish_MultipleEventsAndHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	handler1 := newTestHandler("DocumentPosted")
	handler2 := newTestHandler()
	bus.Subscribe(handler1)
	bus.Subscribe(handler2)

	posted := newTestEvent("DocumentPosted", uuid.New())
	paid := newTestEvent("DocumentPaid", uuid.New())
	require.NoError(t, bus.Publish(context.Background(), posted, paid))

	assert.Len(t, handler1.getHandled(), 1)
	assert.Len(t, handler2.getHandled(), 2)
}

func TestInMemoryEventBus_Publish_HandlerErrorAborts(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("DocumentPosted")
	failing.err = errors.New("reconcile failed")
	other := newTestHandler("DocumentPosted", "DocumentPaid")
	bus.Subscribe(failing)
	bus.Subscribe(other)

	first := newTestEvent("DocumentPosted", uuid.New())
	second := newTestEvent("DocumentPaid", uuid.New())
	err := bus.Publish(context.Background(), first, second)

	require.Error(t, err)
	assert.ErrorIs(t, err, failing.err)
	// every handler of the failing event ran, later events did not
	assert.Len(t, failing.getHandled(), 1)
	assert.Equal(t, []shared.DomainEvent{first}, other.getHandled())
}

func TestInMemoryEventBus_Publish_JoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	h1 := newTestHandler("DocumentPosted")
	h1.err = shared.NewInvalidStateError("first")
	h2 := newTestHandler("DocumentPosted")
	h2.err = errors.New("second")
	bus.Subscribe(h1)
	bus.Subscribe(h2)

	err := bus.Publish(context.Background(), newTestEvent("DocumentPosted", uuid.New()))
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.ErrorIs(t, err, h2.err)
}

func TestInMemoryEventBus_Publish_PanicBecomesError(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("DocumentPosted")
	handler.panicWith = "boom"
	bus.Subscribe(handler)

	err := bus.Publish(context.Background(), newTestEvent("DocumentPosted", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Contains(t, err.Error(), "boom")
}

func TestInMemoryEventBus_Publish_NoMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("TransactionVoided")
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("DocumentPosted", uuid.New())))
	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("DocumentPosted")
	bus.Subscribe(handler)

	_ = bus.Publish(context.Background(), newTestEvent("DocumentPosted", uuid.New()))
	assert.Len(t, handler.getHandled(), 1)

	bus.Unsubscribe(handler)

	_ = bus.Publish(context.Background(), newTestEvent("DocumentPosted", uuid.New()))
	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_PassesPublisherContext(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	type ctxKey struct{}
	var seen any
	bus.Subscribe(handlerFunc(func(ctx context.Context, _ shared.DomainEvent) error {
		seen = ctx.Value(ctxKey{})
		return nil
	}))

	ctx := context.WithValue(context.Background(), ctxKey{}, "tx")
	require.NoError(t, bus.Publish(ctx, newTestEvent("DocumentPosted", uuid.New())))
	assert.Equal(t, "tx", seen)
}

type handlerFunc func(ctx context.Context, event shared.DomainEvent) error

func (f handlerFunc) Handle(ctx context.Context, event shared.DomainEvent) error { return f(ctx, event) }
func (f handlerFunc) EventTypes() []string                                      { return nil }
