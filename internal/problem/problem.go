// Package problem defines the Problem record and the typed state machine
// that governs its lifecycle.
package problem

import (
	"time"
)

// Status is the lifecycle state of a problem.
type Status string

const (
	StatusCandidate Status = "candidate" // detected by the system, unconfirmed
	StatusProposed  Status = "proposed"  // surfaced to the user
	StatusConfirmed Status = "confirmed" // approved by the user
	StatusRejected  Status = "rejected"  // declined, terminal
	StatusSnoozed   Status = "snoozed"   // deferred for later re-evaluation
	StatusArchived  Status = "archived"  // resolved or closed, terminal
)

// Valid reports whether s is one of the six known states.
func (s Status) Valid() bool {
	switch s {
	case StatusCandidate, StatusProposed, StatusConfirmed, StatusRejected, StatusSnoozed, StatusArchived:
		return true
	}
	return false
}

// Transition is one entry in a problem's append-only transition history.
type Transition struct {
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	UserAction string    `json:"user_action,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Problem is a Gap promoted through Interpretation, carrying cause,
// impact and a lifecycle state.
type Problem struct {
	ID            string   `json:"id"`
	GapID         string   `json:"gap_id"`
	Domain        string   `json:"domain"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Cause         string   `json:"cause"`
	Impact        string   `json:"impact"`
	Severity      string   `json:"severity"`
	AffectedItems []string `json:"affected_items,omitempty"`
	ProblemScore  float64  `json:"problem_score"`

	Status     Status    `json:"status"`
	DetectedAt time.Time `json:"detected_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	ProposedAt      *time.Time `json:"proposed_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy     string     `json:"confirmed_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	SnoozedAt       *time.Time `json:"snoozed_at,omitempty"`
	SnoozeUntil     *time.Time `json:"snooze_until,omitempty"`
	SnoozeReason    string     `json:"snooze_reason,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	ArchiveReason   string     `json:"archive_reason,omitempty"`

	TransitionHistory []Transition `json:"transition_history,omitempty"`
}
