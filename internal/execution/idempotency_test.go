package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventIDStableAcrossKeyOrder(t *testing.T) {
	a := EventID("gmail.apply_label:important", "email_1", map[string]any{
		"agent_id": "agent_1",
		"domain":   "email",
	})
	b := EventID("gmail.apply_label:important", "email_1", map[string]any{
		"domain":   "email",
		"agent_id": "agent_1",
	})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEventIDDiscriminates(t *testing.T) {
	base := EventID("gmail.apply_label:important", "email_1", nil)

	assert.NotEqual(t, base, EventID("gmail.apply_label:urgent", "email_1", nil))
	assert.NotEqual(t, base, EventID("gmail.apply_label:important", "email_2", nil))
	assert.NotEqual(t, base, EventID("gmail.apply_label:important", "email_1", map[string]any{"agent_id": "agent_1"}))
}

func TestEventIDNilContextEqualsEmpty(t *testing.T) {
	assert.Equal(t,
		EventID("notify.daily_report", "digest", nil),
		EventID("notify.daily_report", "digest", map[string]any{}))
}

func TestIdempotencyTrackerSeen(t *testing.T) {
	tracker := NewIdempotencyTracker(0)
	id := EventID("gmail.apply_label:important", "email_1", nil)

	assert.False(t, tracker.Seen(id))
	assert.True(t, tracker.Seen(id))
	assert.False(t, tracker.Seen(EventID("gmail.apply_label:important", "email_2", nil)))
}

func TestIdempotencyTrackerCapacityEvictsOldest(t *testing.T) {
	tracker := NewIdempotencyTracker(2)

	assert.False(t, tracker.Seen("event_a"))
	assert.False(t, tracker.Seen("event_b"))
	assert.False(t, tracker.Seen("event_c")) // evicts event_a

	assert.False(t, tracker.Seen("event_a"))
	assert.True(t, tracker.Seen("event_c"))
}
