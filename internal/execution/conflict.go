package execution

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"sia/internal/agent"
)

// Conflict types.
const (
	ConflictResourceLock = "resource_lock"
	ConflictLabel        = "label_conflict"
)

// Conflict describes why an action cannot proceed against a resource.
type Conflict struct {
	HasConflict      bool   `json:"has_conflict"`
	Type             string `json:"conflict_type,omitempty"`
	ConflictingAgent string `json:"conflicting_agent,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
}

type lockInfo struct {
	agentID    string
	action     agent.Action
	priority   int
	acquiredAt time.Time
}

// ConflictManager arbitrates write access to shared resources. Locks
// are granted by priority; a strictly higher priority preempts the
// current holder.
type ConflictManager struct {
	mu    sync.Mutex
	locks map[string]lockInfo
}

func NewConflictManager() *ConflictManager {
	return &ConflictManager{locks: map[string]lockInfo{}}
}

// Check inspects the lock table without mutating it. Writes and
// deletes against a resource locked by another agent conflict;
// differing apply_label targets on the same resource conflict even
// across action types.
func (m *ConflictManager) Check(agentID string, action agent.Action, resourceID string) Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, held := m.locks[resourceID]
	if !held || lock.agentID == agentID {
		return Conflict{}
	}

	if strings.HasPrefix(action.Do, "gmail.apply_label") &&
		strings.HasPrefix(lock.action.Do, "gmail.apply_label") &&
		lock.action.Do != action.Do {
		return Conflict{
			HasConflict:      true,
			Type:             ConflictLabel,
			ConflictingAgent: lock.agentID,
			Resolution:       "priority_based",
		}
	}

	if action.Type == agent.ActionWrite || action.Type == "delete" {
		return Conflict{
			HasConflict:      true,
			Type:             ConflictResourceLock,
			ConflictingAgent: lock.agentID,
			Resolution:       "priority_based",
		}
	}
	return Conflict{}
}

// Acquire takes the resource lock. A holder with strictly lower
// priority is preempted; equal priority keeps the current holder.
func (m *ConflictManager) Acquire(agentID, resourceID string, action agent.Action, priority int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, held := m.locks[resourceID]; held && existing.agentID != agentID {
		if priority <= existing.priority {
			return false
		}
	}

	m.locks[resourceID] = lockInfo{
		agentID:    agentID,
		action:     action,
		priority:   priority,
		acquiredAt: time.Now(),
	}
	return true
}

// Release drops the lock regardless of holder.
func (m *ConflictManager) Release(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, resourceID)
}

// Holder reports the agent currently holding the resource, if any.
func (m *ConflictManager) Holder(resourceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, held := m.locks[resourceID]
	return lock.agentID, held
}

// Preview summarizes the changes a run would make and the conflicts it
// would hit, before anything executes.
type Preview struct {
	Summary   string          `json:"summary"`
	Conflicts []PreviewDetail `json:"conflicts,omitempty"`
	Changes   []PreviewChange `json:"changes"`
}

type PreviewDetail struct {
	Resource         string `json:"resource"`
	Type             string `json:"conflict_type"`
	ConflictingAgent string `json:"conflicting_agent"`
}

type PreviewChange struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Type     string `json:"type"`
}

// GeneratePreview pairs each action with its resource and reports what
// would change and what would conflict.
func (m *ConflictManager) GeneratePreview(agentID string, actions []agent.Action, resources []string) Preview {
	var preview Preview
	for i, action := range actions {
		if i >= len(resources) {
			break
		}
		resource := resources[i]

		if c := m.Check(agentID, action, resource); c.HasConflict {
			preview.Conflicts = append(preview.Conflicts, PreviewDetail{
				Resource:         resource,
				Type:             c.Type,
				ConflictingAgent: c.ConflictingAgent,
			})
		}
		preview.Changes = append(preview.Changes, PreviewChange{
			Resource: resource,
			Action:   action.Do,
			Type:     action.Type,
		})
	}

	preview.Summary = fmt.Sprintf("agent %s would run %d actions", agentID, len(preview.Changes))
	if n := len(preview.Conflicts); n > 0 {
		preview.Summary += fmt.Sprintf(", %d conflicts detected", n)
	} else {
		preview.Summary += ", no conflicts"
	}
	return preview
}
