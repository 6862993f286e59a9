package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

func testTopics() config.PubSubConfig {
	return config.PubSubConfig{
		InventoryTopic: "inventory",
		PosTopic:       "pos",
		IntegrityTopic: "integrity",
	}
}

func envelopeBytes(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return payload
}

func TestNewEventRegistryRequiresEveryTopic(t *testing.T) {
	for _, blank := range []string{"inventory", "pos", "integrity"} {
		cfg := testTopics()
		switch blank {
		case "inventory":
			cfg.InventoryTopic = ""
		case "pos":
			cfg.PosTopic = ""
		case "integrity":
			cfg.IntegrityTopic = ""
		}
		_, err := NewEventRegistry(cfg)
		assert.ErrorContains(t, err, blank+" topic is required")
	}
}

func TestRegistryRoutesEveryEventType(t *testing.T) {
	reg, err := NewEventRegistry(testTopics())
	require.NoError(t, err)

	assert.Equal(t, []string{"integrity", "inventory", "pos"}, reg.Topics())
	for _, eventType := range enums.OutboxEventTypes() {
		desc, ok := reg.entries[eventType]
		require.True(t, ok, "missing %s", eventType)
		assert.NotNil(t, desc.PayloadFactory())
	}
	assert.Equal(t, "integrity", reg.entries[enums.EventInventoryMismatchFlagged].Topic)
	assert.Equal(t, "pos", reg.entries[enums.EventPOSRefundRecorded].Topic)
	assert.Equal(t, "inventory", reg.entries[enums.EventPricingTiersChanged].Topic)
}

func TestResolveDecodesPayload(t *testing.T) {
	reg, err := NewEventRegistry(testTopics())
	require.NoError(t, err)

	inventoryID := uuid.New()
	resolved, err := reg.Resolve(models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventLowStockReached,
		AggregateType: enums.AggregateInventory,
		AggregateID:   inventoryID,
		Payload:       envelopeBytes(t, payloads.LowStockReachedEvent{InventoryID: inventoryID, Quantity: 1, LowStockThreshold: 4}),
	})
	require.NoError(t, err)
	assert.Equal(t, "inventory", resolved.Descriptor.Topic)
	assert.Equal(t, 1, resolved.Envelope.Version)

	payload, ok := resolved.Payload.(*payloads.LowStockReachedEvent)
	require.True(t, ok)
	assert.Equal(t, inventoryID, payload.InventoryID)
	assert.Equal(t, 4, payload.LowStockThreshold)
}

func TestResolveRejectsInvalidRows(t *testing.T) {
	reg, err := NewEventRegistry(testTopics())
	require.NoError(t, err)
	valid := func(t *testing.T) models.OutboxEvent {
		return models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventLowStockReached,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.New(),
			Payload:       envelopeBytes(t, payloads.LowStockReachedEvent{Quantity: 1}),
		}
	}

	cases := []struct {
		name    string
		mutate  func(*models.OutboxEvent)
		message string
	}{
		{
			name:    "unknown event type",
			mutate:  func(e *models.OutboxEvent) { e.EventType = "order_paid" },
			message: "unsupported event type",
		},
		{
			name:    "aggregate mismatch",
			mutate:  func(e *models.OutboxEvent) { e.AggregateType = enums.AggregatePOSSession },
			message: "aggregate mismatch",
		},
		{
			name:    "nil aggregate",
			mutate:  func(e *models.OutboxEvent) { e.AggregateID = uuid.Nil },
			message: "missing aggregate_id",
		},
		{
			name:    "null data",
			mutate:  func(e *models.OutboxEvent) { e.Payload = []byte(`{"version":1,"data":null}`) },
			message: "envelope data is empty",
		},
		{
			name:    "data of wrong shape",
			mutate:  func(e *models.OutboxEvent) { e.Payload = []byte(`{"version":1,"data":{"quantity":"many"}}`) },
			message: "decode envelope data",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := valid(t)
			tc.mutate(&event)
			_, err := reg.Resolve(event)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err))
			assert.ErrorContains(t, err, tc.message)
		})
	}
}

func TestIsNonRetryableSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("publish: %w", NewNonRetryableError(errors.New("bad topic")))
	assert.True(t, IsNonRetryable(wrapped))
	assert.False(t, IsNonRetryable(errors.New("timeout")))
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
