package execution

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProcessedCap bounds the in-process processed-event set; the
// oldest entries age out once it is exceeded.
const DefaultProcessedCap = 10000

// EventID derives a stable idempotency key from the action, the
// resource it touches and its context. The context is serialized with
// sorted keys so equal maps hash equally.
func EventID(action, resourceID string, context map[string]any) string {
	if context == nil {
		context = map[string]any{}
	}
	payload, _ := json.Marshal(struct {
		Action     string         `json:"action"`
		ResourceID string         `json:"resource_id"`
		Context    map[string]any `json:"context"`
	}{action, resourceID, context})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// IdempotencyTracker remembers processed event IDs.
type IdempotencyTracker struct {
	processed *lru.Cache[string, struct{}]
}

// NewIdempotencyTracker builds a tracker holding at most capacity event
// IDs; non-positive capacity selects the default.
func NewIdempotencyTracker(capacity int) *IdempotencyTracker {
	if capacity <= 0 {
		capacity = DefaultProcessedCap
	}
	cache, _ := lru.New[string, struct{}](capacity)
	return &IdempotencyTracker{processed: cache}
}

// Seen marks the event processed and reports whether it already was.
func (t *IdempotencyTracker) Seen(eventID string) bool {
	if _, ok := t.processed.Get(eventID); ok {
		return true
	}
	t.processed.Add(eventID, struct{}{})
	return false
}
