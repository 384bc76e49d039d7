package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int
	bus.Subscribe(EventOrderPaid, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventOrderPaid, OrderEventPayload{OrderID: "ord-1", Status: "confirmed"})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventOrderPaid, received.Type)

	var decoded OrderEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "ord-1", decoded.OrderID)
	assert.Equal(t, "confirmed", decoded.Status)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerErrorIsContained(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)

	var second bool
	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { second = true; return nil })

	bus.Publish(&Event{Type: "event"})
	assert.True(t, second)
	assert.Contains(t, buf.String(), "Event handler failed")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestAuditLoggerSubscribedToAll(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(nil)
	bus.SubscribeAll(AuditLogger(&logger), EventOrderCreated, EventClaimFiled)

	require.NoError(t, bus.PublishJSON(EventOrderCreated, OrderEventPayload{OrderID: "ord-2"}))
	require.NoError(t, bus.PublishJSON(EventClaimFiled, OrderEventPayload{OrderID: "ord-2"}))
	require.NoError(t, bus.PublishJSON(EventVendorApproval, OrderEventPayload{}))

	out := buf.String()
	assert.Contains(t, out, `"event":"order_created"`)
	assert.Contains(t, out, `"event":"damage_claim_filed"`)
	assert.NotContains(t, out, "vendor_approval")
}

func TestNewJSONEventUnsupportedPayload(t *testing.T) {
	_, err := NewJSONEvent("type", make(chan int))
	assert.Error(t, err)
}
