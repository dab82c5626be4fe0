package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewBus(logger, nil)
}

func TestPublish_RegistrationOrderAcrossTypedAndWildcard(t *testing.T) {
	bus := newTestBus()
	var calls []string
	record := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, _ Event) error {
			calls = append(calls, name)
			return nil
		})
	}

	bus.Subscribe(StatusChanged, "first", record("first"))
	bus.SubscribeAll("any", record("any"))
	bus.Subscribe(IncidentCreated, "other-type", record("other-type"))
	bus.Subscribe(StatusChanged, "last", record("last"))

	bus.Publish(context.Background(), Event{Type: StatusChanged, IncidentID: uuid.New()})

	assert.Equal(t, []string{"first", "any", "last"}, calls)
}

func TestPublish_IsolatesFailingHandlers(t *testing.T) {
	bus := newTestBus()
	delivered := 0

	bus.SubscribeAll("erroring", HandlerFunc(func(_ context.Context, _ Event) error {
		return errors.New("boom")
	}))
	bus.SubscribeAll("panicking", HandlerFunc(func(_ context.Context, _ Event) error {
		panic("kaboom")
	}))
	bus.SubscribeAll("healthy", HandlerFunc(func(_ context.Context, _ Event) error {
		delivered++
		return nil
	}))

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: MessageSent})
	})
	assert.Equal(t, 1, delivered)
}

func TestPublish_StampsIDAndTimestamp(t *testing.T) {
	bus := newTestBus()
	var got Event
	bus.SubscribeAll("capture", HandlerFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	}))

	bus.Publish(context.Background(), Event{Type: IncidentCreated})

	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestPublish_NoSubscribers(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestBus().Publish(context.Background(), Event{Type: Resolved})
	})
}

func TestType_WireAndGlobal(t *testing.T) {
	for _, typ := range WireTypes() {
		assert.True(t, typ.IsWire(), typ)
	}
	assert.False(t, MissionIssued.IsWire())
	assert.True(t, IncidentCreated.IsGlobal())
	assert.True(t, StatusChanged.IsGlobal())
	assert.False(t, LocationUpdated.IsGlobal())
}
