package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDeliveryStatus(t *testing.T) {
	testCases := []struct {
		input    string
		expected DeliveryStatus
		ok       bool
	}{
		{"sent", DeliveryStatusSent, true},
		{"delivered", DeliveryStatusDelivered, true},
		{"read", DeliveryStatusRead, true},
		{"failed", DeliveryStatusFailed, true},
		{"", DeliveryStatusNone, false},
		{"deleted", DeliveryStatusNone, false},
		{"SENT", DeliveryStatusNone, false},
	}

	for _, tc := range testCases {
		t.Run("input_"+tc.input, func(t *testing.T) {
			status, ok := ParseDeliveryStatus(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestShouldOverwrite(t *testing.T) {
	testCases := []struct {
		name     string
		current  DeliveryStatus
		incoming DeliveryStatus
		expected bool
	}{
		{"first status applies", DeliveryStatusNone, DeliveryStatusSent, true},
		{"sent to delivered", DeliveryStatusSent, DeliveryStatusDelivered, true},
		{"delivered to read", DeliveryStatusDelivered, DeliveryStatusRead, true},
		{"sent straight to read", DeliveryStatusSent, DeliveryStatusRead, true},
		{"redelivery of same status", DeliveryStatusDelivered, DeliveryStatusDelivered, true},
		{"read never regresses to delivered", DeliveryStatusRead, DeliveryStatusDelivered, false},
		{"delivered never regresses to sent", DeliveryStatusDelivered, DeliveryStatusSent, false},
		{"read never regresses to sent", DeliveryStatusRead, DeliveryStatusSent, false},
		{"failed overrides sent", DeliveryStatusSent, DeliveryStatusFailed, true},
		{"failed overrides read", DeliveryStatusRead, DeliveryStatusFailed, true},
		{"recovery from failed to sent", DeliveryStatusFailed, DeliveryStatusSent, true},
		{"recovery from failed to read", DeliveryStatusFailed, DeliveryStatusRead, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ShouldOverwrite(tc.current, tc.incoming))
		})
	}
}

// TestShouldOverwrite_EventSequences replays out-of-order provider event
// streams and checks the final state converges to the right value.
func TestShouldOverwrite_EventSequences(t *testing.T) {
	apply := func(events ...DeliveryStatus) DeliveryStatus {
		current := DeliveryStatusNone
		for _, ev := range events {
			if ShouldOverwrite(current, ev) {
				current = ev
			}
		}
		return current
	}

	assert.Equal(t, DeliveryStatusRead,
		apply(DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusRead))
	// A failed in the middle is recoverable by a later read.
	assert.Equal(t, DeliveryStatusRead,
		apply(DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusRead))
	// A failed after read sticks until something newer arrives.
	assert.Equal(t, DeliveryStatusFailed,
		apply(DeliveryStatusRead, DeliveryStatusFailed))
	// Late delivered after read is dropped.
	assert.Equal(t, DeliveryStatusRead,
		apply(DeliveryStatusSent, DeliveryStatusRead, DeliveryStatusDelivered))
}

func TestTicketStatusIsTerminal(t *testing.T) {
	assert.False(t, TicketStatusPendente.IsTerminal())
	assert.False(t, TicketStatusAguardando.IsTerminal())
	assert.False(t, TicketStatusEmAtendimento.IsTerminal())
	assert.True(t, TicketStatusResolvido.IsTerminal())
	assert.True(t, TicketStatusEncerrado.IsTerminal())
}
