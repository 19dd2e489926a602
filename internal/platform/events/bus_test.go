package events

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestBus_PublishToTypedSubscriber(t *testing.T) {
	bus := NewBus(testLogger())

	var got []Event
	bus.Subscribe(TypePADenied, func(_ context.Context, evt Event) {
		got = append(got, evt)
	})
	bus.Subscribe(TypeSlotFreed, func(_ context.Context, evt Event) {
		t.Error("slot.freed subscriber must not see pa.denied")
	})

	bus.Publish(context.Background(), Event{Type: TypePADenied, Reason: "not medically necessary"})

	assert.Len(t, got, 1)
	assert.Equal(t, TypePADenied, got[0].Type)
	assert.Equal(t, "not medically necessary", got[0].Reason)
	assert.NotEqual(t, uuid.Nil, got[0].ID, "publish assigns an event ID")
	assert.False(t, got[0].Timestamp.IsZero(), "publish stamps the event")
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(testLogger())

	var count int
	bus.SubscribeAll(func(_ context.Context, evt Event) { count++ })

	bus.Publish(context.Background(), Event{Type: TypePADenied})
	bus.Publish(context.Background(), Event{Type: TypeSlotFreed})
	bus.Publish(context.Background(), Event{Type: TypeEligibilityFailed})

	assert.Equal(t, 3, count)
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(testLogger())

	bus.Subscribe(TypePADenied, func(_ context.Context, _ Event) {
		panic("subscriber bug")
	})
	var reached bool
	bus.Subscribe(TypePADenied, func(_ context.Context, _ Event) {
		reached = true
	})

	bus.Publish(context.Background(), Event{Type: TypePADenied})

	assert.True(t, reached, "later subscribers still run after a panic")
}
