package problem

import (
	"fmt"
	"time"
)

// DefaultSnoozeDays is the snooze horizon applied when none is given.
const DefaultSnoozeDays = 7

// allowedTransitions is the full transition graph. Rejected and Archived
// are terminal.
var allowedTransitions = map[Status][]Status{
	StatusCandidate: {StatusProposed},
	StatusProposed:  {StatusConfirmed, StatusRejected, StatusSnoozed},
	StatusConfirmed: {StatusArchived},
	StatusRejected:  {},
	StatusSnoozed:   {StatusCandidate, StatusRejected},
	StatusArchived:  {},
}

// IllegalTransitionError reports an attempt to move a problem along an
// edge that is not in the transition graph.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal problem transition: %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionOpts carries the optional metadata recorded with a transition.
type TransitionOpts struct {
	UserAction string
	User       string // who decided, recorded as confirmed_by on approval
	Reason     string
	SnoozeDays int // only meaningful for transitions into Snoozed
	Now        time.Time
}

// Apply moves p to target, stamping updated_at, appending a transition
// history entry and setting the state-specific timestamp fields. It
// returns an *IllegalTransitionError when the edge is not allowed; the
// problem is left untouched in that case.
func Apply(p *Problem, target Status, opts TransitionOpts) error {
	current := p.Status
	if current == "" {
		current = StatusCandidate
	}
	if !CanTransition(current, target) {
		return &IllegalTransitionError{From: current, To: target}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	p.Status = target
	p.UpdatedAt = now
	p.TransitionHistory = append(p.TransitionHistory, Transition{
		From:       current,
		To:         target,
		UserAction: opts.UserAction,
		Reason:     opts.Reason,
		Timestamp:  now,
	})

	switch target {
	case StatusProposed:
		p.ProposedAt = &now
	case StatusConfirmed:
		p.ConfirmedAt = &now
		p.ConfirmedBy = opts.User
		if p.ConfirmedBy == "" {
			p.ConfirmedBy = opts.UserAction
		}
	case StatusRejected:
		p.RejectedAt = &now
		p.RejectionReason = opts.Reason
	case StatusSnoozed:
		// Zero days is legal: it parks the problem for the very next sweep.
		days := opts.SnoozeDays
		if days < 0 {
			days = DefaultSnoozeDays
		}
		until := now.Add(time.Duration(days) * 24 * time.Hour)
		p.SnoozedAt = &now
		p.SnoozeUntil = &until
		p.SnoozeReason = opts.Reason
	case StatusArchived:
		p.ArchivedAt = &now
		p.ArchiveReason = opts.Reason
	}

	return nil
}

// Promote moves a candidate into Proposed on behalf of the system.
func Promote(p *Problem, now time.Time) error {
	return Apply(p, StatusProposed, TransitionOpts{UserAction: "system_propose", Now: now})
}

// Confirm records a user approval by the named user.
func Confirm(p *Problem, by string, now time.Time) error {
	return Apply(p, StatusConfirmed, TransitionOpts{UserAction: "user_approve", User: by, Now: now})
}

// Reject records a user rejection with an optional reason.
func Reject(p *Problem, reason string, now time.Time) error {
	return Apply(p, StatusRejected, TransitionOpts{UserAction: "user_reject", Reason: reason, Now: now})
}

// Snooze defers the problem for the given number of days; a negative
// value selects the default of 7.
func Snooze(p *Problem, days int, reason string, now time.Time) error {
	return Apply(p, StatusSnoozed, TransitionOpts{
		UserAction: "user_snooze",
		Reason:     reason,
		SnoozeDays: days,
		Now:        now,
	})
}

// Archive closes a confirmed problem.
func Archive(p *Problem, reason string, now time.Time) error {
	return Apply(p, StatusArchived, TransitionOpts{UserAction: "user_archive", Reason: reason, Now: now})
}

// CheckSnoozed transitions every snoozed problem whose snooze_until has
// passed back to Candidate and returns the woken problems. Problems are
// mutated in place.
func CheckSnoozed(problems []*Problem, now time.Time) []*Problem {
	var woken []*Problem
	for _, p := range problems {
		if p.Status != StatusSnoozed || p.SnoozeUntil == nil {
			continue
		}
		if now.Before(*p.SnoozeUntil) {
			continue
		}
		if err := Apply(p, StatusCandidate, TransitionOpts{
			UserAction: "system_reevaluate",
			Reason:     "snooze period expired",
			Now:        now,
		}); err != nil {
			continue
		}
		woken = append(woken, p)
	}
	return woken
}
