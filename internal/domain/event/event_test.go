package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"header approved", TypeHeaderApproved, true},
		{"header rejected", TypeHeaderRejected, true},
		{"level opened", TypeLevelOpened, true},
		{"unknown", Type("instance.created"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeHeaderApproved, 42, map[string]interface{}{KeyActor: "ana"})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.NotEqual(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, int64(42), evt.HeaderID)
	assert.Equal(t, "ana", evt.GetPayloadString(KeyActor))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeLevelOpened, 1, nil)
	require.NotNil(t, evt.Payload)
	assert.Equal(t, "", evt.GetPayloadString(KeyLevel))
}

func TestNewEventWithCorrelation(t *testing.T) {
	first := NewEvent(TypeHeaderSubmitted, 7, nil)
	next := NewEventWithCorrelation(TypeLevelOpened, 7, nil, first.CorrelationID)

	assert.Equal(t, first.CorrelationID, next.CorrelationID)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestEvent_WithPayload(t *testing.T) {
	orig := NewEvent(TypeLevelOpened, 3, map[string]interface{}{KeyLevel: "10"})
	updated := orig.WithPayload(KeyCostCenter, "AF25")

	assert.Equal(t, "AF25", updated.GetPayloadString(KeyCostCenter))
	assert.Equal(t, "10", updated.GetPayloadString(KeyLevel))
	assert.Equal(t, "", orig.GetPayloadString(KeyCostCenter))
	assert.Equal(t, orig.ID, updated.ID)
}

func TestEvent_GetPayloadNumbers(t *testing.T) {
	evt := NewEvent(TypeRuleSetReplaced, 0, map[string]interface{}{
		KeyVersion: 4,
		"float":    float64(9),
		KeyStepIDs: []interface{}{float64(1), int64(2)},
	})

	assert.Equal(t, int64(4), evt.GetPayloadInt(KeyVersion))
	assert.Equal(t, int64(9), evt.GetPayloadInt("float"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("missing"))
	assert.Equal(t, []int64{1, 2}, evt.GetPayloadInts(KeyStepIDs))

	direct := NewEvent(TypeLevelOpened, 1, map[string]interface{}{KeyStepIDs: []int64{5}})
	assert.Equal(t, []int64{5}, direct.GetPayloadInts(KeyStepIDs))
}
